package geo

import (
	"context"

	"github.com/zhouzirui/transit-voice/backend/internal/model/transit"
)

// Geocoder turns free text into a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (transit.LatLng, bool, error)
}

// Service is the GeoRegionResolver: a geocoder plus a region catalog.
type Service struct {
	geocoder Geocoder
	catalog  *Catalog
}

// NewService composes a geocoder with a region catalog.
func NewService(geocoder Geocoder, catalog *Catalog) *Service {
	return &Service{geocoder: geocoder, catalog: catalog}
}

// Geocode resolves city text; ok is false when the text matched nothing.
func (s *Service) Geocode(ctx context.Context, text string) (transit.LatLng, bool, error) {
	return s.geocoder.Geocode(ctx, text)
}

// NearestRegion returns the closest usable region.
func (s *Service) NearestRegion(_ context.Context, loc transit.LatLng, includeExperimental bool) (transit.Region, bool, error) {
	r, ok := s.catalog.Nearest(loc, includeExperimental)
	return r, ok, nil
}

// AllRegions lists every usable region.
func (s *Service) AllRegions(_ context.Context, includeExperimental bool) ([]transit.Region, error) {
	return s.catalog.Usable(includeExperimental), nil
}
