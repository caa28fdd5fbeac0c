package transit

import "time"

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bound is one rectangular service area of a region, expressed as a center and span.
type Bound struct {
	Lat     float64 `json:"lat" yaml:"lat"`
	Lon     float64 `json:"lon" yaml:"lon"`
	LatSpan float64 `json:"latSpan" yaml:"latSpan"`
	LonSpan float64 `json:"lonSpan" yaml:"lonSpan"`
}

// Region is a geographic service area served by its own transit backend.
type Region struct {
	ID           string  `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	BaseURL      string  `json:"baseUrl" yaml:"baseUrl"`
	Active       bool    `json:"active" yaml:"active"`
	Experimental bool    `json:"experimental" yaml:"experimental"`
	Bounds       []Bound `json:"bounds" yaml:"bounds"`
}

// Stop is a physical stop as returned by a rider-code search.
type Stop struct {
	ID        string   `json:"id"`
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Direction string   `json:"direction,omitempty"`
	Location  LatLng   `json:"location"`
	RouteIDs  []string `json:"routeIds,omitempty"`
}

// StopDetail is a stop plus the routes serving it.
type StopDetail struct {
	Stop
	Routes []Route `json:"routes"`
}

// Route is a transit line serving a stop.
type Route struct {
	ID        string `json:"id"`
	ShortName string `json:"shortName"`
	LongName  string `json:"longName,omitempty"`
}

// SpokenName is the name a rider would say for the route.
func (r Route) SpokenName() string {
	if r.ShortName != "" {
		return r.ShortName
	}
	if r.LongName != "" {
		return r.LongName
	}
	return r.ID
}

// Arrival is one upcoming vehicle at a stop.
type Arrival struct {
	RouteID        string    `json:"routeId"`
	RouteShortName string    `json:"routeShortName"`
	Headsign       string    `json:"headsign"`
	Scheduled      time.Time `json:"scheduled"`
	Predicted      time.Time `json:"predicted,omitempty"`
}

// Expected returns the predicted time when one exists, the scheduled time otherwise.
func (a Arrival) Expected() time.Time {
	if !a.Predicted.IsZero() {
		return a.Predicted
	}
	return a.Scheduled
}

// ArrivalSet is the answer to an arrivals query.
type ArrivalSet struct {
	StopID      string    `json:"stopId"`
	CurrentTime time.Time `json:"currentTime"`
	Arrivals    []Arrival `json:"arrivals"`
}
