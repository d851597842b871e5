package dismiss

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashsync/internal/metrics"
	"dashsync/internal/models"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock { return &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)} }

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func storedRecord(t *testing.T, s *MemoryStore, id string) (models.OutlierRecord, bool) {
	t.Helper()
	raw, err := s.Get(context.Background(), id)
	if errors.Is(err, ErrNotFound) {
		return models.OutlierRecord{}, false
	}
	require.NoError(t, err)
	var rec models.OutlierRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return rec, true
}

type recorder struct {
	hidden    []string
	overHide  []string
	disposed  []string
	alerts    []string
	reloads   int
	reloadErr error
}

func (r *recorder) Hide(id string)               { r.hidden = append(r.hidden, id) }
func (r *recorder) Alert(msg string)             { r.alerts = append(r.alerts, msg) }
func (r *recorder) Reload(context.Context) error { r.reloads++; return r.reloadErr }

type overlayRecorder struct{ r *recorder }

func (o overlayRecorder) Hide(id string)    { o.r.overHide = append(o.r.overHide, id) }
func (o overlayRecorder) Dispose(id string) { o.r.disposed = append(o.r.disposed, id) }

type answer bool

func (a answer) Confirm(context.Context, string) bool { return bool(a) }

func TestTTLDismissThenReload(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewMemoryStore()
	rec := &recorder{}
	cache := NewTTLCache(store, 0,
		WithClock(clk.now),
		WithView(rec),
		WithOverlays(overlayRecorder{rec}),
		WithConfirmer(answer(true)),
	)

	start := clk.now()
	require.NoError(t, cache.Dismiss(ctx, "o1"))
	assert.Equal(t, []string{"o1"}, rec.hidden)
	assert.Equal(t, []string{"o1"}, rec.disposed)

	stored, ok := storedRecord(t, store, "o1")
	require.True(t, ok)
	assert.True(t, stored.Hidden)
	assert.Equal(t, start.Add(days(21)).UnixMilli(), stored.Expiry)

	clk.advance(days(20))
	assert.True(t, cache.IsDismissed(ctx, "o1"))

	clk.advance(days(2))
	assert.False(t, cache.IsDismissed(ctx, "o1"))
	_, ok = storedRecord(t, store, "o1")
	assert.False(t, ok, "expired record should be evicted on read")
}

func TestTTLBoundary(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewMemoryStore()
	cache := NewTTLCache(store, days(21), WithClock(clk.now))

	require.NoError(t, cache.Dismiss(ctx, "o2"))

	clk.advance(days(21) - time.Millisecond)
	assert.True(t, cache.IsDismissed(ctx, "o2"))

	clk.advance(time.Millisecond)
	assert.False(t, cache.IsDismissed(ctx, "o2"))
	assert.Zero(t, store.Len())
}

func TestTTLCorruptEntryIsPurged(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "o3", "{not json", 0))
	cache := NewTTLCache(store, 0)

	assert.NotPanics(t, func() {
		assert.False(t, cache.IsDismissed(ctx, "o3"))
	})
	assert.Zero(t, store.Len())
}

func TestTTLAbsentAndEmptyID(t *testing.T) {
	cache := NewTTLCache(NewMemoryStore(), 0)
	assert.False(t, cache.IsDismissed(context.Background(), "never"))
	assert.False(t, cache.IsDismissed(context.Background(), ""))
	assert.Error(t, cache.Dismiss(context.Background(), ""))
}

func TestTTLNotHiddenRecordIsKept(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewMemoryStore()
	data, _ := json.Marshal(models.OutlierRecord{Hidden: false, Expiry: clk.now().Add(time.Hour).UnixMilli()})
	require.NoError(t, store.Set(ctx, "o4", string(data), 0))

	cache := NewTTLCache(store, 0, WithClock(clk.now))
	assert.False(t, cache.IsDismissed(ctx, "o4"))
	assert.Equal(t, 1, store.Len())
}

func TestTTLDeclinedLeavesNoTrace(t *testing.T) {
	store := NewMemoryStore()
	rec := &recorder{}
	m := metrics.New()
	cache := NewTTLCache(store, 0, WithView(rec), WithConfirmer(answer(false)), WithTTLMetrics(m))

	err := cache.Dismiss(context.Background(), "o5")
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Zero(t, store.Len())
	assert.Empty(t, rec.hidden)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Dismissals.WithLabelValues(VariantTTL, metrics.ResultDeclined)))
}

func TestTTLTwoPhaseFlow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rec := &recorder{}
	cache := NewTTLCache(store, 0, WithView(rec), WithOverlays(overlayRecorder{rec}))

	assert.ErrorIs(t, cache.ConfirmPending(ctx), ErrNoPending)

	cache.Request("o6")
	id, ok := cache.Pending()
	require.True(t, ok)
	assert.Equal(t, "o6", id)
	assert.Equal(t, []string{"o6"}, rec.overHide)
	assert.Zero(t, store.Len(), "nothing is stored before confirmation")

	cache.Cancel()
	_, ok = cache.Pending()
	assert.False(t, ok)

	cache.Request("o6")
	require.NoError(t, cache.ConfirmPending(ctx))
	assert.True(t, cache.IsDismissed(ctx, "o6"))
	assert.Equal(t, []string{"o6"}, rec.disposed)
	_, ok = cache.Pending()
	assert.False(t, ok)
}

func TestTTLSweep(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewMemoryStore()
	cache := NewTTLCache(store, days(1), WithClock(clk.now))

	require.NoError(t, cache.Dismiss(ctx, "old"))
	clk.advance(days(2))
	require.NoError(t, cache.Dismiss(ctx, "fresh"))
	require.NoError(t, store.Set(ctx, "junk", "???", 0))

	removed := cache.Sweep(ctx, []string{"old", "fresh", "junk", "missing", ""})
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.Len())
	assert.True(t, cache.IsDismissed(ctx, "fresh"))
}

func TestTTLSweepAll(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewMemoryStore()
	cache := NewTTLCache(store, days(1), WithClock(clk.now))

	require.NoError(t, cache.Dismiss(ctx, "a"))
	require.NoError(t, store.Set(ctx, "b", "{", 0))
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	removed, err := cache.SweepAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	clk.advance(days(1))
	removed, err = cache.SweepAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, store.Len())

	bare := struct{ Store }{NewMemoryStore()}
	_, err = NewTTLCache(bare, 0).SweepAll(ctx)
	assert.ErrorIs(t, err, ErrNotListable)
}

type failingStore struct{ *MemoryStore }

func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("disk full")
}

func TestTTLStoreWriteError(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	cache := NewTTLCache(failingStore{NewMemoryStore()}, 0, WithView(rec), WithOverlays(overlayRecorder{rec}))

	assert.Error(t, cache.Dismiss(ctx, "o7"))
	assert.Empty(t, rec.hidden, "warning stays visible when nothing was saved")
	assert.Empty(t, rec.disposed)
	assert.False(t, cache.IsDismissed(ctx, "o7"))
}

func TestApplyHidesDismissed(t *testing.T) {
	ctx := context.Background()
	cache := NewTTLCache(NewMemoryStore(), 0)
	require.NoError(t, cache.Dismiss(ctx, "a"))
	require.NoError(t, cache.Dismiss(ctx, "c"))

	rec := &recorder{}
	hidden := Apply(ctx, cache, rec, []string{"a", "b", "", "c"})
	assert.Equal(t, []string{"a", "c"}, hidden)
	assert.Equal(t, []string{"a", "c"}, rec.hidden)
}

type fakeRemote struct {
	ok    bool
	err   error
	calls []string
}

func (f *fakeRemote) DismissOutlier(_ context.Context, id string) (bool, error) {
	f.calls = append(f.calls, id)
	return f.ok, f.err
}

func newServer(t *testing.T, remote *fakeRemote, confirm bool, rec *recorder) *ServerConfirmed {
	t.Helper()
	s, err := NewServerConfirmed(ServerDeps{
		Remote:    remote,
		Confirmer: answer(confirm),
		Notifier:  rec,
		Reloader:  rec,
		Overlays:  overlayRecorder{rec},
	})
	require.NoError(t, err)
	return s
}

func TestServerConfirmedSuccessReloads(t *testing.T) {
	remote := &fakeRemote{ok: true}
	rec := &recorder{}
	s := newServer(t, remote, true, rec)

	require.NoError(t, s.Dismiss(context.Background(), "o1"))
	assert.Equal(t, []string{"o1"}, remote.calls)
	assert.Equal(t, 1, rec.reloads)
	assert.Equal(t, []string{"o1"}, rec.disposed)
	assert.Empty(t, rec.hidden, "no optimistic local hide")
	assert.Empty(t, rec.alerts)
}

func TestServerConfirmedRejected(t *testing.T) {
	remote := &fakeRemote{ok: false}
	rec := &recorder{}
	s := newServer(t, remote, true, rec)

	err := s.Dismiss(context.Background(), "o1")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Len(t, rec.alerts, 1)
	assert.Zero(t, rec.reloads)
	assert.Empty(t, rec.disposed)
	assert.Empty(t, rec.hidden)
	assert.Len(t, remote.calls, 1, "no retry")
	assert.False(t, s.IsDismissed(context.Background(), "o1"))
}

func TestServerConfirmedNetworkError(t *testing.T) {
	remote := &fakeRemote{err: errors.New("connection reset")}
	rec := &recorder{}
	s := newServer(t, remote, true, rec)

	err := s.Dismiss(context.Background(), "o1")
	require.Error(t, err)
	assert.Len(t, rec.alerts, 1)
	assert.Zero(t, rec.reloads)
}

func TestServerConfirmedDeclined(t *testing.T) {
	remote := &fakeRemote{ok: true}
	rec := &recorder{}
	s := newServer(t, remote, false, rec)

	assert.ErrorIs(t, s.Dismiss(context.Background(), "o1"), ErrDeclined)
	assert.Empty(t, remote.calls)
	assert.Zero(t, rec.reloads)
}

func TestServerConfirmedReloadError(t *testing.T) {
	remote := &fakeRemote{ok: true}
	rec := &recorder{reloadErr: errors.New("render failed")}
	s := newServer(t, remote, true, rec)

	assert.Error(t, s.Dismiss(context.Background(), "o1"))
	assert.Empty(t, rec.alerts)
}

func TestNewServerConfirmedRequiresDeps(t *testing.T) {
	_, err := NewServerConfirmed(ServerDeps{})
	assert.Error(t, err)
	_, err = NewServerConfirmed(ServerDeps{Remote: &fakeRemote{}})
	assert.Error(t, err)
	_, err = NewServerConfirmed(ServerDeps{Remote: &fakeRemote{}, Confirmer: AutoConfirm{}})
	assert.Error(t, err)
}
