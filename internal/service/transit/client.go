package transit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	model "github.com/zhouzirui/transit-voice/backend/internal/model/transit"
)

// Client is the TransitClient bound to one region's base URL.
type Client interface {
	FindStopsByRiderCode(ctx context.Context, loc model.LatLng, radiusMeters int, code string) ([]model.Stop, error)
	GetStop(ctx context.Context, stopID string) (model.StopDetail, error)
	GetArrivals(ctx context.Context, stopID string, windowMinutes int) (model.ArrivalSet, error)
	GetRoutesForStop(ctx context.Context, stopID string) ([]model.Route, error)
	GetRegionTimeZone(ctx context.Context) (string, error)
}

// Factory binds a Client to a region base URL.
type Factory interface {
	ForRegion(baseURL string) Client
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(baseURL string) Client

// ForRegion calls f.
func (f FactoryFunc) ForRegion(baseURL string) Client { return f(baseURL) }

// OBAFactory builds OneBusAway REST clients sharing one HTTP client.
type OBAFactory struct {
	APIKey     string
	HTTPClient *http.Client
}

// ForRegion returns a client for the region at baseURL.
func (f OBAFactory) ForRegion(baseURL string) Client {
	return NewOBAClient(baseURL, f.APIKey, f.HTTPClient)
}

// OBAClient talks to the OneBusAway REST API of one region.
type OBAClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewOBAClient returns a client for baseURL.
func NewOBAClient(baseURL, apiKey string, httpClient *http.Client) *OBAClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &OBAClient{baseURL: baseURL, apiKey: apiKey, http: httpClient}
}

type envelope struct {
	Code        int             `json:"code"`
	CurrentTime int64           `json:"currentTime"`
	Text        string          `json:"text"`
	Data        json.RawMessage `json:"data"`
}

type obaReferences struct {
	Routes []struct {
		ID        string `json:"id"`
		ShortName string `json:"shortName"`
		LongName  string `json:"longName"`
	} `json:"routes"`
	Agencies []struct {
		ID       string `json:"id"`
		Timezone string `json:"timezone"`
	} `json:"agencies"`
}

type obaStop struct {
	ID        string   `json:"id"`
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Direction string   `json:"direction"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	RouteIDs  []string `json:"routeIds"`
}

func (s obaStop) toModel() model.Stop {
	return model.Stop{
		ID:        s.ID,
		Code:      s.Code,
		Name:      s.Name,
		Direction: s.Direction,
		Location:  model.LatLng{Lat: s.Lat, Lng: s.Lon},
		RouteIDs:  s.RouteIDs,
	}
}

func (c *OBAClient) get(ctx context.Context, path string, q url.Values, out any) (int64, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("key", c.apiKey)
	u := c.baseURL + "api/where/" + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "transit: build request %s", path)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "transit: request %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("transit: %s returned status %d", path, resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return 0, errors.Wrapf(err, "transit: decode %s", path)
	}
	if env.Code != 0 && env.Code != http.StatusOK {
		return 0, errors.Errorf("transit: %s returned code %d: %s", path, env.Code, env.Text)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return 0, errors.Wrapf(err, "transit: decode %s data", path)
		}
	}
	return env.CurrentTime, nil
}

// FindStopsByRiderCode returns stops near loc whose rider-facing code equals
// code, in the order the server listed them.
func (c *OBAClient) FindStopsByRiderCode(ctx context.Context, loc model.LatLng, radiusMeters int, code string) ([]model.Stop, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(loc.Lng, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(radiusMeters))
	q.Set("query", code)

	var data struct {
		List []obaStop `json:"list"`
	}
	if _, err := c.get(ctx, "stops-for-location.json", q, &data); err != nil {
		return nil, err
	}
	stops := make([]model.Stop, 0, len(data.List))
	for _, s := range data.List {
		if s.Code != code {
			continue
		}
		stops = append(stops, s.toModel())
	}
	return stops, nil
}

// GetStop returns a stop and the routes serving it.
func (c *OBAClient) GetStop(ctx context.Context, stopID string) (model.StopDetail, error) {
	var data struct {
		Entry      obaStop       `json:"entry"`
		References obaReferences `json:"references"`
	}
	if _, err := c.get(ctx, "stop/"+url.PathEscape(stopID)+".json", nil, &data); err != nil {
		return model.StopDetail{}, err
	}

	byID := make(map[string]model.Route, len(data.References.Routes))
	for _, r := range data.References.Routes {
		byID[r.ID] = model.Route{ID: r.ID, ShortName: r.ShortName, LongName: r.LongName}
	}
	detail := model.StopDetail{Stop: data.Entry.toModel()}
	for _, id := range data.Entry.RouteIDs {
		route, ok := byID[id]
		if !ok {
			route = model.Route{ID: id}
		}
		detail.Routes = append(detail.Routes, route)
	}
	return detail, nil
}

// GetRoutesForStop returns the routes serving a stop.
func (c *OBAClient) GetRoutesForStop(ctx context.Context, stopID string) ([]model.Route, error) {
	detail, err := c.GetStop(ctx, stopID)
	if err != nil {
		return nil, err
	}
	return detail.Routes, nil
}

// GetArrivals returns arrivals within the next windowMinutes.
func (c *OBAClient) GetArrivals(ctx context.Context, stopID string, windowMinutes int) (model.ArrivalSet, error) {
	q := url.Values{}
	q.Set("minutesBefore", "0")
	q.Set("minutesAfter", strconv.Itoa(windowMinutes))

	var data struct {
		Entry struct {
			ArrivalsAndDepartures []struct {
				RouteID              string `json:"routeId"`
				RouteShortName       string `json:"routeShortName"`
				TripHeadsign         string `json:"tripHeadsign"`
				Predicted            bool   `json:"predicted"`
				PredictedArrivalTime int64  `json:"predictedArrivalTime"`
				ScheduledArrivalTime int64  `json:"scheduledArrivalTime"`
			} `json:"arrivalsAndDepartures"`
		} `json:"entry"`
	}
	now, err := c.get(ctx, fmt.Sprintf("arrivals-and-departures-for-stop/%s.json", url.PathEscape(stopID)), q, &data)
	if err != nil {
		return model.ArrivalSet{}, err
	}

	// A zero epoch means the field was absent; leave the time zero so callers
	// fall back to their own clock.
	set := model.ArrivalSet{StopID: stopID}
	if now > 0 {
		set.CurrentTime = time.UnixMilli(now)
	}
	for _, a := range data.Entry.ArrivalsAndDepartures {
		arrival := model.Arrival{
			RouteID:        a.RouteID,
			RouteShortName: a.RouteShortName,
			Headsign:       a.TripHeadsign,
		}
		if a.ScheduledArrivalTime > 0 {
			arrival.Scheduled = time.UnixMilli(a.ScheduledArrivalTime)
		}
		if a.Predicted && a.PredictedArrivalTime > 0 {
			arrival.Predicted = time.UnixMilli(a.PredictedArrivalTime)
		}
		set.Arrivals = append(set.Arrivals, arrival)
	}
	return set, nil
}

// GetRegionTimeZone returns the time zone of the region's first agency.
func (c *OBAClient) GetRegionTimeZone(ctx context.Context) (string, error) {
	var data struct {
		References obaReferences `json:"references"`
	}
	if _, err := c.get(ctx, "agencies-with-coverage.json", nil, &data); err != nil {
		return "", err
	}
	for _, a := range data.References.Agencies {
		if a.Timezone != "" {
			return a.Timezone, nil
		}
	}
	return "", errors.New("transit: no agency time zone published")
}
