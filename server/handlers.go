package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pubplan/pubplan/pkg/domain"
	"github.com/pubplan/pubplan/pkg/repository"
	"github.com/pubplan/pubplan/pkg/sched"
)

// overviewHandler returns status reports for all platforms, fetched concurrently
func (s *Server) overviewHandler(w http.ResponseWriter, r *http.Request) {
	platforms, err := s.platforms.GetPlatforms(r.Context())
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	now := time.Now()
	reports := make([]*domain.StatusReport, len(platforms))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(5)
	for i, platform := range platforms {
		g.Go(func() error {
			report, err := s.scheduler.StatusReport(ctx, platform.ID, now)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"version":   s.version,
		"time":      now.UTC(),
		"platforms": reports,
	})
}

// platformStatusHandler returns the diagnostic report for one platform
func (s *Server) platformStatusHandler(w http.ResponseWriter, r *http.Request) {
	platformID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RenderError(w, r, errors.New("invalid platform id"), http.StatusBadRequest)
		return
	}

	report, err := s.scheduler.StatusReport(r.Context(), platformID, time.Now())
	if err != nil {
		RenderError(w, r, err, statusCode(err))
		return
	}

	RenderJSON(w, r, http.StatusOK, report)
}

// dailySlotsHandler returns the planned slot distribution for a platform and date
func (s *Server) dailySlotsHandler(w http.ResponseWriter, r *http.Request) {
	platformID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RenderError(w, r, errors.New("invalid platform id"), http.StatusBadRequest)
		return
	}

	date := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			RenderError(w, r, errors.New("invalid date, expected YYYY-MM-DD"), http.StatusBadRequest)
			return
		}
	}

	slots, err := s.scheduler.DailySlots(r.Context(), platformID, date)
	if err != nil {
		RenderError(w, r, err, statusCode(err))
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"platform_id": platformID,
		"date":        date.Format("2006-01-02"),
		"slots":       slots,
	})
}

type scheduleRequest struct {
	ArticleID  int64  `json:"article_id"`
	PlatformID int64  `json:"platform_id"`
	Priority   string `json:"priority"`
}

// scheduleHandler schedules a single article
func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}

	entry, err := s.scheduler.ScheduleItem(r.Context(), req.ArticleID, req.PlatformID, domain.Priority(req.Priority), time.Now())
	if err != nil {
		RenderError(w, r, err, statusCode(err))
		return
	}

	RenderJSON(w, r, http.StatusCreated, entry)
}

type scheduleBatchRequest struct {
	ArticleIDs []int64 `json:"article_ids"`
	PlatformID int64   `json:"platform_id"`
	Priority   string  `json:"priority"`
}

// scheduleBatchHandler schedules a batch of articles in one transaction
func (s *Server) scheduleBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req scheduleBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}
	if len(req.ArticleIDs) == 0 {
		RenderError(w, r, errors.New("article_ids is empty"), http.StatusBadRequest)
		return
	}

	entries, err := s.scheduler.ScheduleBatch(r.Context(), req.ArticleIDs, req.PlatformID, domain.Priority(req.Priority), time.Now())
	if err != nil {
		RenderError(w, r, err, statusCode(err))
		return
	}

	RenderJSON(w, r, http.StatusCreated, entries)
}

// rescheduleHandler recomputes the slot of a failed queue entry
func (s *Server) rescheduleHandler(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RenderError(w, r, errors.New("invalid queue entry id"), http.StatusBadRequest)
		return
	}

	entry, err := s.scheduler.Reschedule(r.Context(), entryID, time.Now())
	if err != nil {
		RenderError(w, r, err, statusCode(err))
		return
	}

	RenderJSON(w, r, http.StatusOK, entry)
}

// statusCode maps scheduling errors to HTTP status codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sched.ErrUnsatisfiable), errors.Is(err, sched.ErrSchedulingDisabled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
