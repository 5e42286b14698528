package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/sites"
	"github.com/couchcryptid/storm-radar/internal/timeline"
)

const framesTimeout = 20 * time.Second

type nearestQuery struct {
	Lat   float64 `validate:"latitude"`
	Lon   float64 `validate:"longitude"`
	MaxKm float64 `validate:"gte=0"`
}

type framesResponse struct {
	Provider   string      `json:"provider"`
	Label      string      `json:"label"`
	MaxZoom    int         `json:"max_zoom"`
	ManifestID string      `json:"manifest_id"`
	FetchedAt  time.Time   `json:"fetched_at"`
	Frames     []frameView `json:"frames"`
}

type frameView struct {
	Time     time.Time `json:"time"`
	Label    string    `json:"label"`
	Nowcast  bool      `json:"nowcast,omitempty"`
	Template string    `json:"template,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSites(w http.ResponseWriter, _ *http.Request) {
	data, err := s.deps.Sites.GeoJSON()
	if err != nil {
		s.logger.Error("encode sites", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: domain.Describe(err)})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseNearest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.Describe(err)})
		return
	}

	res, ok := s.deps.Sites.Nearest(domain.GeoPoint{Lat: q.Lat, Lon: q.Lon}, sites.Options{MaxDistanceKm: q.MaxKm})
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: domain.Describe(domain.ErrNoNearestSite)})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) parseNearest(r *http.Request) (nearestQuery, error) {
	q := nearestQuery{MaxKm: s.deps.NearestMaxKm}
	values := r.URL.Query()

	var err error
	if q.Lat, err = strconv.ParseFloat(values.Get("lat"), 64); err != nil {
		return q, errors.Join(domain.ErrInvalidInput, err)
	}
	if q.Lon, err = strconv.ParseFloat(values.Get("lon"), 64); err != nil {
		return q, errors.Join(domain.ErrInvalidInput, err)
	}
	if raw := values.Get("max_km"); raw != "" {
		if q.MaxKm, err = strconv.ParseFloat(raw, 64); err != nil {
			return q, errors.Join(domain.ErrInvalidInput, err)
		}
	}
	if err := s.validate.Struct(q); err != nil {
		return q, errors.Join(domain.ErrInvalidInput, err)
	}
	return q, nil
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	tier := domain.TierNational
	if raw := r.URL.Query().Get("tier"); raw != "" {
		t, ok := domain.ParseTier(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tier must be local or national"})
			return
		}
		tier = t
	}

	ctx, cancel := context.WithTimeout(r.Context(), framesTimeout)
	defer cancel()

	res, err := s.deps.Router.Chain(tier).Frames(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: domain.Describe(err)})
		return
	}

	m := res.Manifest
	resp := framesResponse{
		Provider:   res.Provider.ID(),
		Label:      res.Provider.Label(),
		MaxZoom:    res.Provider.MaxZoom(),
		ManifestID: m.ID,
		FetchedAt:  m.FetchedAt,
		Frames:     make([]frameView, 0, m.Len()),
	}
	for i, f := range m.Frames {
		v := frameView{Time: f.Time, Label: timeline.FrameLabel(m, i), Nowcast: f.Nowcast}
		// A concurrent refresh may have replaced the manifest; the frame then
		// has no template and the client refetches.
		if tmpl, err := res.Provider.TileTemplate(f); err == nil {
			v.Template = string(tmpl)
		}
		resp.Frames = append(resp.Frames, v)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
