package sched

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/pubplan/pubplan/pkg/domain"
)

// Allocator partitions a platform's daily quota into a distributed set of time
// slots across its active hours. Used for preview and planning views,
// recomputed fresh on each call.
type Allocator struct {
	provider *Provider
	rnd      Rand
}

// NewAllocator creates a daily slot allocator with an injected random source
// for the weighted mode
func NewAllocator(provider *Provider, rnd Rand) *Allocator {
	if rnd == nil {
		rnd = DefaultRand()
	}
	return &Allocator{provider: provider, rnd: rnd}
}

// DailySlots computes up to articlesPerDay slots for the given calendar date.
// Slots are spaced by max(minInterval, activeMinutes/articlesPerDay) and jump
// across inactive hours within the day. May yield fewer slots than the quota
// when the active window runs out.
func (a *Allocator) DailySlots(ctx context.Context, platformID int64, date time.Time) ([]time.Time, error) {
	cfg, err := a.provider.Resolve(ctx, platformID)
	if err != nil {
		return nil, err
	}
	return a.slotsFor(cfg, date), nil
}

func (a *Allocator) slotsFor(cfg domain.ScheduleConfig, date time.Time) []time.Time {
	if cfg.ArticlesPerDay <= 0 || len(cfg.ActiveHours) == 0 {
		return []time.Time{}
	}

	hours := append([]int(nil), cfg.ActiveHours...)
	sort.Ints(hours)

	activeMinutes := float64(len(hours) * 60)
	interval := activeMinutes / float64(cfg.ArticlesPerDay)
	if floor := float64(cfg.MinIntervalMinutes); interval < floor {
		interval = floor
	}
	step := time.Duration(math.Ceil(interval)) * time.Minute

	local := date.In(cfg.Location)
	cur := time.Date(local.Year(), local.Month(), local.Day(), hours[0], 0, 0, 0, cfg.Location)

	slots := make([]time.Time, 0, cfg.ArticlesPerDay)
	for len(slots) < cfg.ArticlesPerDay {
		slots = append(slots, cur)

		next := cur.Add(step)
		if next.Day() != cur.Day() {
			break
		}
		if !cfg.HourActive(next.Hour()) {
			// jump to the next active hour within the same day
			jumped := false
			for _, h := range hours {
				if h > next.Hour() {
					next = time.Date(next.Year(), next.Month(), next.Day(), h, 0, 0, 0, cfg.Location)
					jumped = true
					break
				}
			}
			if !jumped {
				break
			}
		}
		cur = next
	}

	if len(cfg.PreferredHours) > 0 {
		slots = a.applyWeights(slots, cfg.PreferredHours)
	}

	return slots
}

// applyWeights biases which hours survive in the final list toward
// higher-weight hours while preserving total count: each slot is replicated
// ceil(weight) times, the multiset is shuffled and truncated back to the
// original count. Best-effort heuristic, output is re-sorted so callers always
// see monotonic slots.
func (a *Allocator) applyWeights(slots []time.Time, weights map[int]float64) []time.Time {
	pool := make([]time.Time, 0, len(slots)*2)
	for _, slot := range slots {
		copies := 1
		if w, ok := weights[slot.Hour()]; ok && w > 0 {
			copies = int(math.Ceil(w))
		}
		for i := 0; i < copies; i++ {
			pool = append(pool, slot)
		}
	}

	a.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	if len(pool) > len(slots) {
		pool = pool[:len(slots)]
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].Before(pool[j]) })
	return pool
}
