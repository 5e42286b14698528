package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/observability"
	"github.com/couchcryptid/storm-radar/internal/pipeline"
)

var t0 = time.Date(2024, time.May, 6, 22, 0, 0, 0, time.UTC)

// --- mocks ---

type fakeRefresher struct {
	id string

	mu       sync.Mutex
	calls    int
	manifest *domain.FrameManifest
	err      error
}

func newFakeRefresher(id, token string) *fakeRefresher {
	f := &fakeRefresher{id: id}
	f.SetToken(token)
	return f
}

func (f *fakeRefresher) ID() string { return f.id }

func (f *fakeRefresher) Refresh(_ context.Context) (*domain.FrameManifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.manifest, nil
}

func (f *fakeRefresher) TileTemplate(fr domain.Frame) (domain.TileTemplate, error) {
	return domain.TileTemplate("https://tiles.test/" + fr.Token + "/{z}/{x}/{y}.png"), nil
}

func (f *fakeRefresher) SetToken(token string) {
	frames := []domain.Frame{
		{Time: t0.Add(-10 * time.Minute), Token: token + "-old"},
		{Time: t0, Token: token},
		{Time: t0.Add(10 * time.Minute), Token: token + "-nowcast", Nowcast: true},
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manifest = &domain.FrameManifest{
		ID:         domain.ManifestID(f.id, frames),
		ProviderID: f.id,
		Frames:     frames,
		FetchedAt:  t0,
	}
}

func (f *fakeRefresher) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRefresher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []domain.ManifestEvent
	failures int
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.ManifestEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) Loaded() []domain.ManifestEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ManifestEvent(nil), m.loaded...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	fc      *clockwork.FakeClock
	loader  *mockLoader
	metrics *observability.Metrics
	p       *pipeline.Pipeline
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan error
}

func start(t *testing.T, loader *mockLoader, providers ...pipeline.Refresher) *harness {
	t.Helper()
	h := &harness{
		fc:      clockwork.NewFakeClockAt(t0),
		loader:  loader,
		metrics: observability.NewMetricsForTesting(),
		done:    make(chan error, 1),
	}
	h.p = pipeline.New(providers, loader, time.Minute, h.fc, discardLogger(), h.metrics)
	h.ctx, h.cancel = context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(h.cancel)
	go func() { h.done <- h.p.Run(h.ctx) }()
	return h
}

// waitIdle blocks until the loop is sleeping on the clock.
func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	require.NoError(t, h.fc.BlockUntilContext(h.ctx, 1))
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop")
	}
}

// --- tests ---

func TestPipeline_PublishesOnlyChangedManifests(t *testing.T) {
	a := newFakeRefresher("rainviewer", "a1")
	b := newFakeRefresher("iem-static", "b1")
	h := start(t, &mockLoader{}, a, b)

	h.waitIdle(t)
	loaded := h.loader.Loaded()
	require.Len(t, loaded, 2)
	assert.Equal(t, "rainviewer", loaded[0].ProviderID)
	assert.Equal(t, 3, loaded[0].FrameCount)
	assert.Equal(t, t0.Add(-10*time.Minute), loaded[0].Oldest)
	assert.Equal(t, t0.Add(10*time.Minute), loaded[0].Newest)
	assert.Equal(t, "https://tiles.test/a1/{z}/{x}/{y}.png", loaded[0].Latest)
	assert.Equal(t, "iem-static", loaded[1].ProviderID)

	// Unchanged manifests are not republished.
	h.fc.Advance(time.Minute)
	h.waitIdle(t)
	assert.Equal(t, 2, a.Calls())
	assert.Len(t, h.loader.Loaded(), 2)

	a.SetToken("a2")
	h.fc.Advance(time.Minute)
	h.waitIdle(t)
	loaded = h.loader.Loaded()
	require.Len(t, loaded, 3)
	assert.Equal(t, "rainviewer", loaded[2].ProviderID)
	assert.NotEqual(t, loaded[0].ManifestID, loaded[2].ManifestID)
	assert.InDelta(t, 3.0, testutil.ToFloat64(h.metrics.ManifestsPublished), 0)

	h.stop(t)
	assert.InDelta(t, 0.0, testutil.ToFloat64(h.metrics.PipelineRunning), 0)
}

func TestPipeline_ReadyAfterFirstLoad(t *testing.T) {
	a := newFakeRefresher("rainviewer", "a1")
	a.SetErr(domain.ErrNetworkFailure)
	h := start(t, &mockLoader{}, a)

	h.waitIdle(t)
	require.Error(t, h.p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.PipelineRunning), 0)

	a.SetErr(nil)
	h.fc.Advance(200 * time.Millisecond)
	h.waitIdle(t)
	require.NoError(t, h.p.CheckReadiness(context.Background()))
	assert.Len(t, h.loader.Loaded(), 1)

	h.stop(t)
}

func TestPipeline_PartialFailureStillPublishes(t *testing.T) {
	a := newFakeRefresher("rainviewer", "a1")
	a.SetErr(domain.ErrMalformedManifest)
	b := newFakeRefresher("iem-static", "b1")
	h := start(t, &mockLoader{}, a, b)

	h.waitIdle(t)
	loaded := h.loader.Loaded()
	require.Len(t, loaded, 1)
	assert.Equal(t, "iem-static", loaded[0].ProviderID)
	require.NoError(t, h.p.CheckReadiness(context.Background()))

	h.stop(t)
}

func TestPipeline_BacksOffExponentially(t *testing.T) {
	a := newFakeRefresher("rainviewer", "a1")
	a.SetErr(domain.ErrNetworkFailure)
	h := start(t, &mockLoader{}, a)

	h.waitIdle(t)
	require.Equal(t, 1, a.Calls())

	h.fc.Advance(200 * time.Millisecond)
	h.waitIdle(t)
	require.Equal(t, 2, a.Calls())

	// Second retry waits 400ms.
	h.fc.Advance(399 * time.Millisecond)
	assert.Never(t, func() bool { return a.Calls() > 2 }, 50*time.Millisecond, 5*time.Millisecond)
	h.fc.Advance(time.Millisecond)
	h.waitIdle(t)
	assert.Equal(t, 3, a.Calls())

	h.stop(t)
}

func TestPipeline_LoadFailureRetriesSameEvents(t *testing.T) {
	a := newFakeRefresher("rainviewer", "a1")
	h := start(t, &mockLoader{failures: 1}, a)

	h.waitIdle(t)
	assert.Empty(t, h.loader.Loaded())

	h.fc.Advance(200 * time.Millisecond)
	h.waitIdle(t)
	loaded := h.loader.Loaded()
	require.Len(t, loaded, 1)
	assert.Equal(t, "rainviewer", loaded[0].ProviderID)

	h.stop(t)
}

func TestPipeline_ContextCancellation(t *testing.T) {
	a := newFakeRefresher("rainviewer", "a1")
	p := pipeline.New([]pipeline.Refresher{a}, &mockLoader{}, time.Minute, clockwork.NewFakeClockAt(t0),
		discardLogger(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
}

func TestLogLoader(t *testing.T) {
	l := pipeline.NewLogLoader(discardLogger())
	require.NoError(t, l.LoadBatch(context.Background(), []domain.ManifestEvent{{ProviderID: "rainviewer"}}))
}
