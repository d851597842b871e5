package dismiss

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"dashsync/internal/logging"
	"dashsync/internal/metrics"
	"dashsync/internal/models"
)

// TTLCache hides warnings for a bounded period using only the local store.
// Expired and unreadable records are deleted when read.
type TTLCache struct {
	store     Store
	ttl       time.Duration
	now       func() time.Time
	view      View
	overlays  Overlays
	confirmer Confirmer
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	pending string
}

// TTLOption configures a TTLCache.
type TTLOption func(*TTLCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TTLOption { return func(c *TTLCache) { c.now = now } }

// WithView sets the view whose warning elements are hidden on dismissal.
func WithView(v View) TTLOption { return func(c *TTLCache) { c.view = v } }

// WithOverlays sets the hover overlays hidden and disposed during dismissal.
func WithOverlays(o Overlays) TTLOption { return func(c *TTLCache) { c.overlays = o } }

// WithConfirmer sets the confirmer asked by Dismiss; AutoConfirm by default.
func WithConfirmer(cf Confirmer) TTLOption { return func(c *TTLCache) { c.confirmer = cf } }

// WithTTLLogger sets the logger; nil means no logging.
func WithTTLLogger(l *zap.Logger) TTLOption { return func(c *TTLCache) { c.logger = logging.OrNop(l) } }

// WithTTLMetrics records dismissal outcomes on m.
func WithTTLMetrics(m *metrics.Metrics) TTLOption { return func(c *TTLCache) { c.metrics = m } }

// NewTTLCache builds the cache. A non-positive ttl means the 21 day default.
func NewTTLCache(store Store, ttl time.Duration, opts ...TTLOption) *TTLCache {
	if ttl <= 0 {
		ttl = models.DefaultDismissTTL
	}
	c := &TTLCache{
		store:     store,
		ttl:       ttl,
		now:       time.Now,
		confirmer: AutoConfirm{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TTLCache) Variant() string { return VariantTTL }

// Lookup returns the stored record when it is still valid. Expired or
// malformed records are deleted and reported as absent.
func (c *TTLCache) Lookup(ctx context.Context, outlierID string) (models.OutlierRecord, bool) {
	if outlierID == "" {
		return models.OutlierRecord{}, false
	}
	raw, err := c.store.Get(ctx, outlierID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("read dismissal failed", zap.String("outlier_id", outlierID), zap.Error(err))
		}
		return models.OutlierRecord{}, false
	}

	var rec models.OutlierRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		c.logger.Warn("dropping unreadable dismissal record",
			zap.String("outlier_id", outlierID), zap.Error(err))
		c.remove(ctx, outlierID)
		return models.OutlierRecord{}, false
	}
	if rec.Expired(c.now()) {
		c.remove(ctx, outlierID)
		return models.OutlierRecord{}, false
	}
	return rec, true
}

// IsDismissed reports whether the warning is hidden by an unexpired record.
func (c *TTLCache) IsDismissed(ctx context.Context, outlierID string) bool {
	rec, ok := c.Lookup(ctx, outlierID)
	return ok && rec.Honored(c.now())
}

// Request opens the two-phase dismissal for outlierID. The hover overlay is
// hidden while the confirmation is open.
func (c *TTLCache) Request(outlierID string) {
	if c.overlays != nil {
		c.overlays.Hide(outlierID)
	}
	c.mu.Lock()
	c.pending = outlierID
	c.mu.Unlock()
}

// Pending returns the id awaiting confirmation, if any.
func (c *TTLCache) Pending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending, c.pending != ""
}

// Cancel drops the open request.
func (c *TTLCache) Cancel() {
	c.mu.Lock()
	c.pending = ""
	c.mu.Unlock()
}

// ConfirmPending completes the open request as if the user accepted it.
func (c *TTLCache) ConfirmPending(ctx context.Context) error {
	c.mu.Lock()
	id := c.pending
	c.pending = ""
	c.mu.Unlock()
	if id == "" {
		return ErrNoPending
	}
	return c.commit(ctx, id)
}

// Dismiss asks the confirmer and, when accepted, records the dismissal.
func (c *TTLCache) Dismiss(ctx context.Context, outlierID string) error {
	if outlierID == "" {
		return errors.New("outlier id required")
	}
	if !c.confirmer.Confirm(ctx, ConfirmPrompt(outlierID)) {
		c.metrics.Dismissal(VariantTTL, metrics.ResultDeclined)
		return ErrDeclined
	}
	return c.commit(ctx, outlierID)
}

// commit writes the record first; the warning and its overlay are only
// removed once the write succeeded.
func (c *TTLCache) commit(ctx context.Context, outlierID string) error {
	rec := models.NewOutlierRecord(c.now(), c.ttl)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode dismissal: %w", err)
	}
	if err := c.store.Set(ctx, outlierID, string(data), c.ttl); err != nil {
		c.metrics.Dismissal(VariantTTL, metrics.ResultError)
		return fmt.Errorf("store dismissal %s: %w", outlierID, err)
	}
	if c.overlays != nil {
		c.overlays.Dispose(outlierID)
	}
	if c.view != nil {
		c.view.Hide(outlierID)
	}
	c.metrics.Dismissal(VariantTTL, metrics.ResultOK)
	c.logger.Info("outlier dismissed",
		zap.String("outlier_id", outlierID),
		zap.Time("expires_at", time.UnixMilli(rec.Expiry)))
	return nil
}

// Sweep evicts expired or unreadable records among ids ahead of any read.
// It returns how many were removed.
func (c *TTLCache) Sweep(ctx context.Context, ids []string) int {
	removed := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := c.store.Get(ctx, id); err != nil {
			continue
		}
		if _, ok := c.Lookup(ctx, id); !ok {
			removed++
		}
	}
	return removed
}

// SweepAll sweeps every key of a store that implements Lister.
func (c *TTLCache) SweepAll(ctx context.Context) (int, error) {
	lister, ok := c.store.(Lister)
	if !ok {
		return 0, ErrNotListable
	}
	ids, err := lister.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list dismissals: %w", err)
	}
	return c.Sweep(ctx, ids), nil
}

func (c *TTLCache) remove(ctx context.Context, outlierID string) {
	if err := c.store.Delete(ctx, outlierID); err != nil && !errors.Is(err, ErrNotFound) {
		c.logger.Warn("delete dismissal failed", zap.String("outlier_id", outlierID), zap.Error(err))
	}
}
