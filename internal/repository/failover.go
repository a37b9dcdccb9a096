package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"staybooking/internal/domain"
	"staybooking/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverGeoIndex serves queries from primary and falls back to a local mirror
// while primary is failing. Writes always go to both; a primary write error is
// returned so the outbox retries it, and the write is also remembered so that
// primary is caught up before queries switch back to it.
type FailoverGeoIndex struct {
	primary   domain.GeoIndex
	fallback  domain.GeoIndex
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64

	mu sync.Mutex
	// stay id -> point to index, nil means remove
	missed map[int64]*models.GeoPoint
}

func NewFailoverGeoIndex(primary, fallback domain.GeoIndex, logger *zerolog.Logger) *FailoverGeoIndex {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverGeoIndex{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		missed:   make(map[int64]*models.GeoPoint),
	}
}

func (r *FailoverGeoIndex) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary geo index failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverGeoIndex) recheckDue() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

// Degraded reports whether queries are currently served by the fallback.
func (r *FailoverGeoIndex) Degraded() bool {
	return r.isDown.Load()
}

// Missed returns how many writes primary has not seen yet.
func (r *FailoverGeoIndex) Missed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.missed)
}

func (r *FailoverGeoIndex) QueryRadius(ctx context.Context, center models.GeoPoint, radiusKm float64) ([]int64, error) {
	if !r.isDown.Load() || r.recheckDue() {
		ids, err := r.queryPrimary(ctx, center, radiusKm)
		if err == nil {
			return ids, nil
		}
		r.markDown(err)
	}

	return r.fallback.QueryRadius(ctx, center, radiusKm)
}

func (r *FailoverGeoIndex) queryPrimary(ctx context.Context, center models.GeoPoint, radiusKm float64) ([]int64, error) {
	// primary отвечает, но мог пропустить записи: сначала догоняем
	if err := r.replayMissed(ctx); err != nil {
		return nil, err
	}
	ids, err := r.primary.QueryRadius(ctx, center, radiusKm)
	if err != nil {
		return nil, err
	}
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary geo index recovered")
	}
	return ids, nil
}

// replayMissed applies remembered writes to primary. Entries stay on error.
func (r *FailoverGeoIndex) replayMissed(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.missed) == 0 {
		return nil
	}

	for id, p := range r.missed {
		var err error
		if p == nil {
			err = r.primary.Remove(ctx, id)
		} else {
			err = r.primary.Index(ctx, id, *p)
		}
		if err != nil {
			return err
		}
		delete(r.missed, id)
	}
	r.logger.Info().Msg("primary geo index caught up with missed writes")
	return nil
}

func (r *FailoverGeoIndex) remember(stayID int64, point *models.GeoPoint, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.missed[stayID] = point
		return
	}
	delete(r.missed, stayID)
}

func (r *FailoverGeoIndex) Index(ctx context.Context, stayID int64, point models.GeoPoint) error {
	_ = r.fallback.Index(ctx, stayID, point)
	err := r.primary.Index(ctx, stayID, point)
	r.remember(stayID, &point, err)
	if err != nil {
		r.markDown(err)
	}
	return err
}

func (r *FailoverGeoIndex) Remove(ctx context.Context, stayID int64) error {
	_ = r.fallback.Remove(ctx, stayID)
	err := r.primary.Remove(ctx, stayID)
	r.remember(stayID, nil, err)
	if err != nil {
		r.markDown(err)
	}
	return err
}
