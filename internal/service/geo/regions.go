package geo

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/transit-voice/backend/internal/model/transit"
)

const earthRadiusMeters = 6371008.8

// DefaultMaxDistanceMeters is how far outside a region's bounds a rider may be
// and still be served by it (100 miles).
const DefaultMaxDistanceMeters = 160934

// SeedRegions provides the regions served when no catalog file is configured.
func SeedRegions() []transit.Region {
	return []transit.Region{
		{
			ID:      "0",
			Name:    "Tampa Bay",
			BaseURL: "https://api.tampa.onebusaway.org/api/",
			Active:  true,
			Bounds:  []transit.Bound{{Lat: 27.976910500000002, Lon: -82.445851, LatSpan: 0.5424609999999994, LonSpan: 0.576357999999999}},
		},
		{
			ID:      "1",
			Name:    "Puget Sound",
			BaseURL: "https://api.pugetsound.onebusaway.org/",
			Active:  true,
			Bounds: []transit.Bound{
				{Lat: 47.221315, Lon: -122.4051325, LatSpan: 0.33704, LonSpan: 0.440483},
				{Lat: 47.5607395, Lon: -122.1462785, LatSpan: 0.8254599999999996, LonSpan: 0.7845069999999907},
				{Lat: 47.9959775, Lon: -122.2197505, LatSpan: 0.5268669999999984, LonSpan: 0.43155700000000765},
			},
		},
		{
			ID:      "3",
			Name:    "Atlanta",
			BaseURL: "https://atlanta.onebusaway.org/api/",
			Active:  true,
			Bounds:  []transit.Bound{{Lat: 33.7901797681045, Lon: -84.39483216212469, LatSpan: 0.30624676721417, LonSpan: 0.2993011981534}},
		},
		{
			ID:      "11",
			Name:    "San Diego",
			BaseURL: "https://realtime.sdmts.com/api/",
			Active:  true,
			Bounds:  []transit.Bound{{Lat: 32.8011875, Lon: -116.9711095, LatSpan: 0.706375, LonSpan: 0.8734669999999937}},
		},
		{
			ID:           "2",
			Name:         "MTA New York",
			BaseURL:      "https://bustime.mta.info/",
			Active:       true,
			Experimental: true,
			Bounds:       []transit.Bound{{Lat: 40.707678, Lon: -73.9482045, LatSpan: 0.4079, LonSpan: 0.5296}},
		},
	}
}

type catalogFile struct {
	Regions []transit.Region `yaml:"regions"`
}

// LoadRegionsFile reads a YAML region catalog.
func LoadRegionsFile(path string) ([]transit.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading regions file %s", path)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "parsing regions file %s", path)
	}
	if len(file.Regions) == 0 {
		return nil, errors.Errorf("regions file %s lists no regions", path)
	}
	for _, r := range file.Regions {
		if r.ID == "" || r.BaseURL == "" {
			return nil, errors.Errorf("regions file %s: region %q needs id and baseUrl", path, r.Name)
		}
	}
	return file.Regions, nil
}

// Catalog selects usable regions from a fixed list.
type Catalog struct {
	regions     []transit.Region
	maxDistance float64
}

// NewCatalog returns a catalog; maxDistanceMeters <= 0 selects the default.
func NewCatalog(regions []transit.Region, maxDistanceMeters float64) *Catalog {
	if maxDistanceMeters <= 0 {
		maxDistanceMeters = DefaultMaxDistanceMeters
	}
	return &Catalog{
		regions:     append([]transit.Region(nil), regions...),
		maxDistance: maxDistanceMeters,
	}
}

// Usable lists active regions, in catalog order, optionally including experimental ones.
func (c *Catalog) Usable(includeExperimental bool) []transit.Region {
	out := make([]transit.Region, 0, len(c.regions))
	for _, r := range c.regions {
		if !r.Active || r.BaseURL == "" {
			continue
		}
		if r.Experimental && !includeExperimental {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Nearest returns the usable region closest to loc within the distance cutoff.
func (c *Catalog) Nearest(loc transit.LatLng, includeExperimental bool) (transit.Region, bool) {
	var (
		best     transit.Region
		bestDist = math.MaxFloat64
	)
	for _, r := range c.Usable(includeExperimental) {
		d := distanceToRegion(loc, r)
		if d < bestDist {
			best, bestDist = r, d
		}
	}
	if bestDist > c.maxDistance {
		return transit.Region{}, false
	}
	return best, true
}

// distanceToRegion is the distance from loc to the closest point of any bound.
func distanceToRegion(loc transit.LatLng, r transit.Region) float64 {
	nearest := math.MaxFloat64
	for _, b := range r.Bounds {
		lat := clamp(loc.Lat, b.Lat-b.LatSpan/2, b.Lat+b.LatSpan/2)
		lon := clamp(loc.Lng, b.Lon-b.LonSpan/2, b.Lon+b.LonSpan/2)
		if d := haversine(loc, transit.LatLng{Lat: lat, Lng: lon}); d < nearest {
			nearest = d
		}
	}
	return nearest
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func haversine(a, b transit.LatLng) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
