package iem

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar/internal/adapter/upstream"
	"github.com/couchcryptid/storm-radar/internal/domain"
)

var testNow = time.Date(2024, 5, 20, 21, 13, 42, 0, time.UTC)

func TestStaticSource_Frames(t *testing.T) {
	s := NewStaticSource("https://mesonet.example", clockwork.NewFakeClockAt(testNow))

	m, err := s.FetchManifest(context.Background())
	require.NoError(t, err)

	require.Len(t, m.Frames, 7)
	assert.Equal(t, StaticID, m.ProviderID)
	assert.Equal(t, "nexrad-n0q-900913-m30m", m.Frames[0].Token)
	assert.Equal(t, "nexrad-n0q-900913-m05m", m.Frames[5].Token)
	assert.Equal(t, "nexrad-n0q-900913", m.Frames[6].Token)

	latest := time.Date(2024, 5, 20, 21, 10, 0, 0, time.UTC)
	assert.Equal(t, latest, m.Frames[6].Time)
	assert.Equal(t, latest.Add(-30*time.Minute), m.Frames[0].Time)
	assert.Equal(t, 6, m.LatestObserved())
}

func TestStaticSource_Template(t *testing.T) {
	s := NewStaticSource("https://mesonet.example/", clockwork.NewFakeClockAt(testNow))
	m, err := s.FetchManifest(context.Background())
	require.NoError(t, err)

	tmpl, err := s.BuildTemplate(m, m.Frames[0])
	require.NoError(t, err)
	assert.Equal(t, domain.TileTemplate("https://mesonet.example/cache/tile.py/1.0.0/nexrad-n0q-900913-m30m/{z}/{x}/{y}.png"), tmpl)
	assert.True(t, domain.HasPlaceholders(string(tmpl)))
}

func TestStaticSource_EvictedAfterAdvance(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testNow)
	s := NewStaticSource("https://mesonet.example", clock)
	old, err := s.FetchManifest(context.Background())
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	current, err := s.FetchManifest(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, current.ID)

	_, err = s.BuildTemplate(current, old.Frames[0])
	require.ErrorIs(t, err, domain.ErrFrameEvicted)
}

func newScansServer(t *testing.T, handler http.HandlerFunc) (*ScansSource, *clockwork.FakeClock) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	clock := clockwork.NewFakeClockAt(testNow)
	client := upstream.NewClient(ScansID, upstream.Options{Timeout: time.Second, InitialBackoff: time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewScansSource(ScansConfig{BaseURL: srv.URL, Window: time.Hour, MaxFrames: 3}, client, clock), clock
}

func TestScansSource_Frames(t *testing.T) {
	s, _ := newScansServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/radar.py", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "list", q.Get("operation"))
		assert.Equal(t, "N0Q", q.Get("product"))
		assert.Equal(t, "USCOMP", q.Get("radar"))
		assert.Equal(t, "2024-05-20T20:13Z", q.Get("start"))
		assert.Equal(t, "2024-05-20T21:13Z", q.Get("end"))
		_, _ = w.Write([]byte(`{"scans":[
			{"ts":"2024-05-20T21:10Z"},
			{"ts":"2024-05-20T20:50Z"},
			{"ts":"2024-05-20T21:00Z"},
			{"ts":"2024-05-20T21:05Z"}
		]}`))
	})

	m, err := s.FetchManifest(context.Background())
	require.NoError(t, err)

	require.Len(t, m.Frames, 3, "truncated to the most recent scans")
	assert.Equal(t, "ridge::USCOMP-N0Q-202405202100", m.Frames[0].Token)
	assert.Equal(t, "ridge::USCOMP-N0Q-202405202110", m.Frames[2].Token)
	assert.Equal(t, time.Date(2024, 5, 20, 21, 5, 0, 0, time.UTC), m.Frames[1].Time)

	tmpl, err := s.BuildTemplate(m, m.Frames[2])
	require.NoError(t, err)
	assert.Contains(t, string(tmpl), "/cache/tile.py/1.0.0/ridge::USCOMP-N0Q-202405202110/{z}/{x}/{y}.png")
}

func TestScansSource_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty list", `{"scans":[]}`},
		{"missing ts", `{"scans":[{}]}`},
		{"bad ts", `{"scans":[{"ts":"yesterday"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newScansServer(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := s.FetchManifest(context.Background())
			require.ErrorIs(t, err, domain.ErrMalformedManifest)
		})
	}
}

func TestScansSource_NetworkFailure(t *testing.T) {
	s, _ := newScansServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := s.FetchManifest(context.Background())
	require.ErrorIs(t, err, domain.ErrNetworkFailure)
}
