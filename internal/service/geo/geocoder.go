package geo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/zhouzirui/transit-voice/backend/internal/model/transit"
)

// DefaultGeocoderBaseURL is the Google Maps API host.
const DefaultGeocoderBaseURL = "https://maps.googleapis.com"

// GeocoderConfig configures the Google geocoder.
type GeocoderConfig struct {
	BaseURL  string
	APIKey   string
	RetryMax int
	Timeout  time.Duration
}

// GoogleGeocoder resolves free text to a coordinate using the Google Geocoding API.
type GoogleGeocoder struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGoogleGeocoder builds a geocoder with a retrying HTTP client.
func NewGoogleGeocoder(cfg GeocoderConfig) *GoogleGeocoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeocoderBaseURL
	}
	return &GoogleGeocoder{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  NewHTTPClient(cfg.RetryMax, cfg.Timeout),
	}
}

// NewHTTPClient returns a standard client backed by retryablehttp.
func NewHTTPClient(retryMax int, timeout time.Duration) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = nil
	client := rc.StandardClient()
	if timeout > 0 {
		client.Timeout = timeout
	}
	return client
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

// Geocode returns the first match for text; ok is false when nothing matched.
func (g *GoogleGeocoder) Geocode(ctx context.Context, text string) (transit.LatLng, bool, error) {
	q := url.Values{}
	q.Set("address", text)
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/maps/api/geocode/json?"+q.Encode(), nil)
	if err != nil {
		return transit.LatLng{}, false, errors.Wrap(err, "geocode: build request")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return transit.LatLng{}, false, errors.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return transit.LatLng{}, false, errors.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return transit.LatLng{}, false, errors.Wrap(err, "geocode: decode response")
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return transit.LatLng{}, false, nil
	default:
		return transit.LatLng{}, false, errors.Errorf("geocode: status %s: %s", body.Status, body.ErrorMessage)
	}
	if len(body.Results) == 0 {
		return transit.LatLng{}, false, nil
	}
	loc := body.Results[0].Geometry.Location
	return transit.LatLng{Lat: loc.Lat, Lng: loc.Lng}, true, nil
}
