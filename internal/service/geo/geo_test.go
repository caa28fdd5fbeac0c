package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/transit-voice/backend/internal/model/transit"
)

var seattle = transit.LatLng{Lat: 47.6062, Lng: -122.3321}

func TestCatalog_NearestPugetSound(t *testing.T) {
	c := NewCatalog(SeedRegions(), 0)

	r, ok := c.Nearest(seattle, false)
	require.True(t, ok)
	assert.Equal(t, "Puget Sound", r.Name)
}

func TestCatalog_TooFarAway(t *testing.T) {
	c := NewCatalog(SeedRegions(), 0)

	_, ok := c.Nearest(transit.LatLng{Lat: 51.5072, Lng: -0.1276}, true)
	assert.False(t, ok)
}

func TestCatalog_ExperimentalRequiresOptIn(t *testing.T) {
	c := NewCatalog(SeedRegions(), 0)
	brooklyn := transit.LatLng{Lat: 40.6782, Lng: -73.9442}

	_, ok := c.Nearest(brooklyn, false)
	assert.False(t, ok)

	r, ok := c.Nearest(brooklyn, true)
	require.True(t, ok)
	assert.Equal(t, "MTA New York", r.Name)

	assert.Len(t, c.Usable(true), len(c.Usable(false))+1)
}

func TestLoadRegionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	data := `
regions:
  - id: "42"
    name: Testville
    baseUrl: http://oba.test/
    active: true
    bounds:
      - {lat: 10, lon: 10, latSpan: 1, lonSpan: 1}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	regions, err := LoadRegionsFile(path)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "Testville", regions[0].Name)
	assert.Equal(t, 1.0, regions[0].Bounds[0].LatSpan)

	require.NoError(t, os.WriteFile(path, []byte("regions: []\n"), 0o600))
	_, err = LoadRegionsFile(path)
	assert.Error(t, err)
}

func TestGoogleGeocoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		switch r.URL.Query().Get("address") {
		case "Seattle":
			_, _ = w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":47.6062,"lng":-122.3321}}}]}`))
		case "Nowhere":
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
		default:
			_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
		}
	}))
	defer srv.Close()

	g := NewGoogleGeocoder(GeocoderConfig{BaseURL: srv.URL, APIKey: "k"})
	ctx := context.Background()

	loc, ok, err := g.Geocode(ctx, "Seattle")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 47.6062, loc.Lat, 1e-6)

	_, ok, err = g.Geocode(ctx, "Nowhere")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = g.Geocode(ctx, "Denied")
	assert.Error(t, err)
}
