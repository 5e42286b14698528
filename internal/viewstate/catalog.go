// Package viewstate holds the static layer catalog and view presets, and the
// pure reducer that is the only way a map session's runtime state changes.
package viewstate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

// LayerID identifies a catalog layer.
type LayerID string

// Scope controls whether a layer is listed outside advanced mode.
type Scope string

const (
	ScopeBasic    Scope = "basic"
	ScopeAdvanced Scope = "advanced"
)

// LayerDefinition is a static catalog entry.
type LayerDefinition struct {
	ID             LayerID `json:"id" validate:"required"`
	Label          string  `json:"label" validate:"required"`
	DefaultOpacity float64 `json:"default_opacity" validate:"min=0,max=1"`
	ZOrder         int     `json:"z_order"`
	Scope          Scope   `json:"scope" validate:"oneof=basic advanced"`
}

// ViewPreset is the layer selection of one view.
type ViewPreset struct {
	ViewID           string              `json:"view_id" validate:"required"`
	Label            string              `json:"label"`
	EnabledLayerIDs  []LayerID           `json:"enabled_layer_ids"`
	OpacityOverrides map[LayerID]float64 `json:"opacity_overrides,omitempty" validate:"dive,min=0,max=1"`
}

// Catalog is immutable after construction.
type Catalog struct {
	layers  []LayerDefinition
	byID    map[LayerID]LayerDefinition
	presets []ViewPreset
	views   map[string]ViewPreset
}

// NewCatalog validates and indexes layer definitions and presets. Presets
// may only reference catalog layers.
func NewCatalog(layers []LayerDefinition, presets []ViewPreset) (*Catalog, error) {
	v := validator.New()
	c := &Catalog{
		byID:  make(map[LayerID]LayerDefinition, len(layers)),
		views: make(map[string]ViewPreset, len(presets)),
	}

	var errs []error
	for i, l := range layers {
		if err := v.Struct(l); err != nil {
			errs = append(errs, fmt.Errorf("layer %d (%s): %w", i, l.ID, err))
			continue
		}
		if _, dup := c.byID[l.ID]; dup {
			errs = append(errs, fmt.Errorf("layer %d: duplicate id %s", i, l.ID))
			continue
		}
		c.byID[l.ID] = l
		c.layers = append(c.layers, l)
	}
	for i, p := range presets {
		if err := v.Struct(p); err != nil {
			errs = append(errs, fmt.Errorf("view %d (%s): %w", i, p.ViewID, err))
			continue
		}
		if _, dup := c.views[p.ViewID]; dup {
			errs = append(errs, fmt.Errorf("view %d: duplicate id %s", i, p.ViewID))
			continue
		}
		for _, id := range p.EnabledLayerIDs {
			if _, ok := c.byID[id]; !ok {
				errs = append(errs, fmt.Errorf("view %s: unknown layer %s", p.ViewID, id))
			}
		}
		for id := range p.OpacityOverrides {
			if _, ok := c.byID[id]; !ok {
				errs = append(errs, fmt.Errorf("view %s: opacity override for unknown layer %s", p.ViewID, id))
			}
		}
		c.views[p.ViewID] = p
		c.presets = append(c.presets, p)
	}
	if len(c.presets) == 0 && len(errs) == 0 {
		errs = append(errs, errors.New("catalog needs at least one view"))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("layer catalog: %w", errors.Join(errs...))
	}

	sort.SliceStable(c.layers, func(i, j int) bool { return c.layers[i].ZOrder < c.layers[j].ZOrder })
	return c, nil
}

// Layers returns the definitions ordered by ZOrder, bottom first.
func (c *Catalog) Layers() []LayerDefinition {
	return append([]LayerDefinition(nil), c.layers...)
}

func (c *Catalog) Layer(id LayerID) (LayerDefinition, bool) {
	l, ok := c.byID[id]
	return l, ok
}

func (c *Catalog) Preset(viewID string) (ViewPreset, bool) {
	p, ok := c.views[viewID]
	return p, ok
}

// Views lists view ids in declaration order.
func (c *Catalog) Views() []string {
	ids := make([]string, len(c.presets))
	for i, p := range c.presets {
		ids[i] = p.ViewID
	}
	return ids
}

// Layer ids of the default catalog.
const (
	LayerSatellite  LayerID = "satellite"
	LayerSeaSurface LayerID = "sea-surface-temp"
	LayerRadar      LayerID = "radar"
	LayerWind       LayerID = "wind"
	LayerAlerts     LayerID = "alerts"
	LayerRadarSites LayerID = "radar-sites"
	LayerLightning  LayerID = "lightning"
	LayerBuoys      LayerID = "buoys"
	LayerTides      LayerID = "tides"
)

// DefaultCatalog returns the built-in layers and the radar, severe and
// marine views.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		[]LayerDefinition{
			{ID: LayerSatellite, Label: "Satellite", DefaultOpacity: 0.6, ZOrder: 5, Scope: ScopeAdvanced},
			{ID: LayerSeaSurface, Label: "Sea surface temperature", DefaultOpacity: 0.5, ZOrder: 6, Scope: ScopeAdvanced},
			{ID: LayerRadar, Label: "Radar", DefaultOpacity: 0.7, ZOrder: 10, Scope: ScopeBasic},
			{ID: LayerWind, Label: "Wind", DefaultOpacity: 0.6, ZOrder: 12, Scope: ScopeAdvanced},
			{ID: LayerAlerts, Label: "Warnings", DefaultOpacity: 0.5, ZOrder: 15, Scope: ScopeBasic},
			{ID: LayerRadarSites, Label: "Radar sites", DefaultOpacity: 1, ZOrder: 20, Scope: ScopeBasic},
			{ID: LayerLightning, Label: "Lightning", DefaultOpacity: 0.9, ZOrder: 25, Scope: ScopeAdvanced},
			{ID: LayerBuoys, Label: "Buoys", DefaultOpacity: 1, ZOrder: 30, Scope: ScopeBasic},
			{ID: LayerTides, Label: "Tide stations", DefaultOpacity: 1, ZOrder: 31, Scope: ScopeBasic},
		},
		[]ViewPreset{
			{
				ViewID:          "radar",
				Label:           "Radar",
				EnabledLayerIDs: []LayerID{LayerRadar, LayerAlerts, LayerRadarSites},
			},
			{
				ViewID:           "severe",
				Label:            "Severe weather",
				EnabledLayerIDs:  []LayerID{LayerRadar, LayerAlerts, LayerLightning, LayerRadarSites},
				OpacityOverrides: map[LayerID]float64{LayerRadar: 0.85, LayerAlerts: 0.6},
			},
			{
				ViewID:           "marine",
				Label:            "Marine",
				EnabledLayerIDs:  []LayerID{LayerRadar, LayerBuoys, LayerTides, LayerSeaSurface, LayerWind},
				OpacityOverrides: map[LayerID]float64{LayerRadar: 0.5},
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}
