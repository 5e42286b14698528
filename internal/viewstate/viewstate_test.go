package viewstate

import (
	"math"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/timeline"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(
		[]LayerDefinition{
			{ID: "radar", Label: "Radar", DefaultOpacity: 0.7, ZOrder: 10, Scope: ScopeBasic},
			{ID: "alerts", Label: "Alerts", DefaultOpacity: 0.5, ZOrder: 15, Scope: ScopeBasic},
			{ID: "lightning", Label: "Lightning", DefaultOpacity: 0.9, ZOrder: 25, Scope: ScopeAdvanced},
			{ID: "satellite", Label: "Satellite", DefaultOpacity: 0.6, ZOrder: 5, Scope: ScopeAdvanced},
		},
		[]ViewPreset{
			{ViewID: "a", EnabledLayerIDs: []LayerID{"radar", "alerts"}},
			{ViewID: "b", EnabledLayerIDs: []LayerID{"radar", "lightning"}, OpacityOverrides: map[LayerID]float64{"lightning": 0.4}},
		},
	)
	require.NoError(t, err)
	return c
}

var initialTimeline = timeline.State{FrameIndex: 3, SpeedMs: 500}

func TestInitial(t *testing.T) {
	c := testCatalog(t)
	got := Initial(c, "b", initialTimeline)

	want := MapState{
		ViewID: "b",
		Layers: map[LayerID]LayerState{
			"radar":     {Enabled: true, Opacity: 0.7},
			"alerts":    {Enabled: false, Opacity: 0.5},
			"lightning": {Enabled: true, Opacity: 0.4},
			"satellite": {Enabled: false, Opacity: 0.6},
		},
		Timeline: initialTimeline,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Initial() mismatch (-want +got):\n%s", diff)
	}
}

func TestInitial_UnknownViewFallsBackToFirst(t *testing.T) {
	c := testCatalog(t)
	assert.Equal(t, "a", Initial(c, "nope", initialTimeline).ViewID)
}

func TestSetLayerOpacity_UnknownIDIsNoop(t *testing.T) {
	c := testCatalog(t)
	s := Initial(c, "a", initialTimeline)

	next := Reduce(c, s, SetLayerOpacity{ID: "nonexistent-id", Opacity: 0.5})
	assert.Equal(t, reflect.ValueOf(s.Layers).Pointer(), reflect.ValueOf(next.Layers).Pointer(), "layers map is shared")
	assert.Empty(t, cmp.Diff(s, next))
	assert.NotContains(t, next.Layers, LayerID("nonexistent-id"))
}

func TestSetLayerEnabled_UnknownIDIsNoop(t *testing.T) {
	c := testCatalog(t)
	s := Initial(c, "a", initialTimeline)

	next := Reduce(c, s, SetLayerEnabled{ID: "ghost", Enabled: true})
	assert.Len(t, next.Layers, 4)
	assert.Empty(t, cmp.Diff(s, next))
}

func TestSetLayerOpacity_Clamps(t *testing.T) {
	c := testCatalog(t)
	s := Initial(c, "a", initialTimeline)

	tests := []struct {
		in, want float64
	}{
		{0.25, 0.25},
		{-1, 0},
		{1.7, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		next := Reduce(c, s, SetLayerOpacity{ID: "radar", Opacity: tt.in})
		assert.InDelta(t, tt.want, next.Layers["radar"].Opacity, 0, "opacity %v", tt.in)
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	c := testCatalog(t)
	s := Initial(c, "a", initialTimeline)
	before := Initial(c, "a", initialTimeline)

	_ = Reduce(c, s, SetLayerOpacity{ID: "radar", Opacity: 0.1})
	_ = Reduce(c, s, SetLayerEnabled{ID: "alerts", Enabled: false})
	_ = Reduce(c, s, SetView{ViewID: "b"})

	if diff := cmp.Diff(before, s); diff != "" {
		t.Errorf("input state mutated (-want +got):\n%s", diff)
	}
}

func TestSetView_PreservesCustomOpacity(t *testing.T) {
	c := testCatalog(t)
	s := Initial(c, "a", initialTimeline)

	s = Reduce(c, s, SetLayerOpacity{ID: "alerts", Opacity: 0.3})
	s = Reduce(c, s, SetView{ViewID: "b"})
	assert.False(t, s.Layers["alerts"].Enabled)
	assert.True(t, s.Layers["lightning"].Enabled)

	s = Reduce(c, s, SetView{ViewID: "a"})
	assert.InDelta(t, 0.3, s.Layers["alerts"].Opacity, 0, "customised opacity survives, not the catalog default")
	assert.True(t, s.Layers["alerts"].Enabled)
	assert.Equal(t, "a", s.ViewID)
}

func TestSetView_CarriesTimeline(t *testing.T) {
	c := testCatalog(t)
	s := Initial(c, "a", initialTimeline)
	s = Reduce(c, s, SetPlaying{Playing: true})
	s = Reduce(c, s, SetView{ViewID: "b"})

	assert.Equal(t, timeline.State{FrameIndex: 3, Playing: true, SpeedMs: 500}, s.Timeline)
}

func TestSetView_UnknownViewUnchanged(t *testing.T) {
	c := testCatalog(t)
	s := Initial(c, "a", initialTimeline)
	next := Reduce(c, s, SetView{ViewID: "zzz"})
	assert.Empty(t, cmp.Diff(s, next))
}

func TestReduce_DirectFields(t *testing.T) {
	c := testCatalog(t)
	s := Initial(c, "a", initialTimeline)
	vp := domain.Viewport{Center: domain.GeoPoint{Lat: 35, Lon: -97}, LatitudeDelta: 4, LongitudeDelta: 6}

	s = Reduce(c, s, SetAdvancedMode{Enabled: true})
	s = Reduce(c, s, SetViewport{Viewport: vp})
	s = Reduce(c, s, SetFrame{Index: 7})
	s = Reduce(c, s, SetSpeed{SpeedMs: 250})
	s = Reduce(c, s, SetSpeed{SpeedMs: 0})
	s = Reduce(c, s, SetFrame{Index: -2})

	assert.True(t, s.AdvancedMode)
	assert.Equal(t, vp, s.Viewport)
	assert.Equal(t, 0, s.Timeline.FrameIndex)
	assert.Equal(t, 250, s.Timeline.SpeedMs)
}

func TestSettingsLayers(t *testing.T) {
	c := testCatalog(t)
	s := Initial(c, "b", initialTimeline)

	basic := SettingsLayers(c, s)
	ids := make([]LayerID, len(basic))
	for i, l := range basic {
		ids[i] = l.ID
	}
	assert.Equal(t, []LayerID{"radar", "alerts"}, ids)

	s = Reduce(c, s, SetAdvancedMode{Enabled: true})
	all := SettingsLayers(c, s)
	require.Len(t, all, 4)
	assert.Equal(t, LayerID("satellite"), all[0].ID, "ordered by z-order")
	assert.Equal(t, LayerID("lightning"), all[3].ID)
	assert.True(t, all[3].Enabled)
	assert.InDelta(t, 0.4, all[3].Opacity, 0)
}

func TestNewCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		layers  []LayerDefinition
		presets []ViewPreset
		want    string
	}{
		{
			name:    "opacity out of range",
			layers:  []LayerDefinition{{ID: "x", Label: "X", DefaultOpacity: 1.5, Scope: ScopeBasic}},
			presets: []ViewPreset{{ViewID: "v"}},
			want:    "layer 0",
		},
		{
			name:    "bad scope",
			layers:  []LayerDefinition{{ID: "x", Label: "X", Scope: "hidden"}},
			presets: []ViewPreset{{ViewID: "v"}},
			want:    "Scope",
		},
		{
			name:    "duplicate layer",
			layers:  []LayerDefinition{{ID: "x", Label: "X", Scope: ScopeBasic}, {ID: "x", Label: "Y", Scope: ScopeBasic}},
			presets: []ViewPreset{{ViewID: "v"}},
			want:    "duplicate id x",
		},
		{
			name:    "preset references unknown layer",
			layers:  []LayerDefinition{{ID: "x", Label: "X", Scope: ScopeBasic}},
			presets: []ViewPreset{{ViewID: "v", EnabledLayerIDs: []LayerID{"y"}}},
			want:    "unknown layer y",
		},
		{
			name:    "no views",
			layers:  []LayerDefinition{{ID: "x", Label: "X", Scope: ScopeBasic}},
			presets: nil,
			want:    "at least one view",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.layers, tt.presets)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{"radar", "severe", "marine"}, c.Views())

	s := Initial(c, "radar", initialTimeline)
	assert.True(t, s.Layers[LayerRadar].Enabled)
	assert.False(t, s.Layers[LayerBuoys].Enabled)
	_, ok := c.Layer(LayerTides)
	assert.True(t, ok)
}
