// Package sites holds the static NEXRAD site registry and resolves the
// closest site to a point.
package sites

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/couchcryptid/storm-radar/internal/domain"
)

//go:embed nexrad_sites.json
var embeddedSites []byte

// siteRecord is the on-disk registry row.
type siteRecord struct {
	ID             string   `json:"id" validate:"required,len=4,alphanum,uppercase"`
	Name           string   `json:"name" validate:"required"`
	State          string   `json:"state"`
	County         string   `json:"county"`
	Lat            float64  `json:"lat" validate:"min=-90,max=90"`
	Lon            float64  `json:"lon" validate:"min=-180,max=180"`
	ElevationFt    *float64 `json:"elevFt"`
	UTCOffsetHours *float64 `json:"utcOffsetHours" validate:"omitempty,min=-12,max=14"`
	Country        string   `json:"country"`
	OwnerType      string   `json:"ownerType"`
}

func (r siteRecord) toDomain() domain.RadarSite {
	return domain.RadarSite{
		ID:             r.ID,
		Name:           r.Name,
		State:          r.State,
		County:         r.County,
		Lat:            r.Lat,
		Lon:            r.Lon,
		ElevationFt:    r.ElevationFt,
		UTCOffsetHours: r.UTCOffsetHours,
		Country:        r.Country,
		OwnerType:      r.OwnerType,
	}
}

// Registry is an immutable, ordered list of radar sites. Order is the
// dataset order and decides ties in Nearest.
type Registry struct {
	sites []domain.RadarSite
	byID  map[string]int
}

// NewRegistry builds a registry from sites in the given order.
func NewRegistry(sites []domain.RadarSite) *Registry {
	r := &Registry{
		sites: make([]domain.RadarSite, len(sites)),
		byID:  make(map[string]int, len(sites)),
	}
	copy(r.sites, sites)
	for i, s := range r.sites {
		if _, dup := r.byID[s.ID]; !dup {
			r.byID[s.ID] = i
		}
	}
	return r
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(embeddedSites))
}

// LoadFile reads a registry dataset from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open site registry: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a JSON registry dataset.
func Load(r io.Reader) (*Registry, error) {
	records, err := decode(r)
	if err != nil {
		return nil, err
	}
	if problems := validateRecords(records); len(problems) > 0 {
		return nil, fmt.Errorf("site registry: %d invalid entries: %s", len(problems), strings.Join(problems, "; "))
	}
	sites := make([]domain.RadarSite, len(records))
	for i, rec := range records {
		sites[i] = rec.toDomain()
	}
	return NewRegistry(sites), nil
}

func decode(r io.Reader) ([]siteRecord, error) {
	var records []siteRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode site registry: %w", err)
	}
	return records, nil
}

// validateRecords checks every record and returns one message per problem.
func validateRecords(records []siteRecord) []string {
	v := validator.New(validator.WithRequiredStructEnabled())
	var problems []string
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		if err := v.Struct(rec); err != nil {
			problems = append(problems, fmt.Sprintf("entry %d (%s): %v", i, rec.ID, err))
		}
		if prev, dup := seen[rec.ID]; dup && rec.ID != "" {
			problems = append(problems, fmt.Sprintf("entry %d: duplicate id %s (first at %d)", i, rec.ID, prev))
			continue
		}
		seen[rec.ID] = i
	}
	return problems
}

// ValidateFile decodes a dataset and reports problems without building a
// registry. The returned count is the number of decoded entries.
func ValidateFile(path string) (int, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("open site registry: %w", err)
	}
	defer f.Close()
	records, err := decode(f)
	if err != nil {
		return 0, nil, err
	}
	return len(records), validateRecords(records), nil
}

// ValidateEmbedded is ValidateFile for the compiled-in dataset.
func ValidateEmbedded() (int, []string, error) {
	records, err := decode(bytes.NewReader(embeddedSites))
	if err != nil {
		return 0, nil, err
	}
	return len(records), validateRecords(records), nil
}

// Len returns the number of sites.
func (r *Registry) Len() int { return len(r.sites) }

// Sites returns a copy of all sites in registry order.
func (r *Registry) Sites() []domain.RadarSite {
	out := make([]domain.RadarSite, len(r.sites))
	copy(out, r.sites)
	return out
}

// Lookup finds a site by ICAO id (case-insensitive).
func (r *Registry) Lookup(id string) (domain.RadarSite, bool) {
	i, ok := r.byID[strings.ToUpper(id)]
	if !ok {
		return domain.RadarSite{}, false
	}
	return r.sites[i], true
}
