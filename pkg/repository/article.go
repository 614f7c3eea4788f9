package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pubplan/pubplan/pkg/domain"
)

// ArticleRepository handles the denormalized article scheduling fields
type ArticleRepository struct {
	ext sqlx.ExtContext
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{ext: db}
}

// withExt returns a copy bound to the given executor (transaction or db)
func (r *ArticleRepository) withExt(ext sqlx.ExtContext) *ArticleRepository {
	return &ArticleRepository{ext: ext}
}

// CreateArticle inserts a new article record
func (r *ArticleRepository) CreateArticle(ctx context.Context, article *domain.Article) error {
	if article.Status == "" {
		article.Status = domain.ArticleDraft
	}

	result, err := r.ext.ExecContext(ctx,
		"INSERT INTO articles (title, status) VALUES (?, ?)",
		article.Title, string(article.Status))
	if err != nil {
		return fmt.Errorf("create article: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	article.ID = id
	return nil
}

// GetArticle retrieves an article by ID
func (r *ArticleRepository) GetArticle(ctx context.Context, id int64) (*domain.Article, error) {
	var rec articleSQL
	err := sqlx.GetContext(ctx, r.ext, &rec, "SELECT * FROM articles WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return rec.toDomain(), nil
}

// UpdateSchedule updates the article's denormalized status and scheduled time
func (r *ArticleRepository) UpdateSchedule(ctx context.Context, id int64, status domain.ArticleStatus, scheduledAt time.Time) error {
	result, err := r.ext.ExecContext(ctx,
		"UPDATE articles SET status = ?, scheduled_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(status), scheduledAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("update article schedule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	return nil
}
