package transit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/transit-voice/backend/internal/model/transit"
)

func newOBAServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/where/stops-for-location.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TEST", r.URL.Query().Get("key"))
		assert.Equal(t, "6497", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`{"code":200,"currentTime":1700000000000,"data":{"list":[
			{"id":"1_6497","code":"6497","name":"University Way NE & NE 45th St","direction":"S","lat":47.66,"lon":-122.31},
			{"id":"1_64970","code":"64970","name":"Other"},
			{"id":"40_6497","code":"6497","name":"Tacoma Dome","direction":"N"}
		]}}`))
	})
	mux.HandleFunc("/api/where/stop/1_6497.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":{
			"entry":{"id":"1_6497","code":"6497","name":"University Way NE & NE 45th St","routeIds":["1_8","1_44","1_10"]},
			"references":{"routes":[
				{"id":"1_10","shortName":"10"},
				{"id":"1_8","shortName":"8"},
				{"id":"1_44","shortName":"44"}
			]}}}`))
	})
	mux.HandleFunc("/api/where/arrivals-and-departures-for-stop/1_6497.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "35", r.URL.Query().Get("minutesAfter"))
		_, _ = w.Write([]byte(`{"code":200,"currentTime":1700000000000,"data":{"entry":{"arrivalsAndDepartures":[
			{"routeId":"1_8","routeShortName":"8","tripHeadsign":"Seattle Center","predicted":true,"predictedArrivalTime":1700000300000,"scheduledArrivalTime":1700000240000},
			{"routeId":"1_44","routeShortName":"44","tripHeadsign":"Ballard","predicted":false,"predictedArrivalTime":0,"scheduledArrivalTime":1700000600000}
		]}}}`))
	})
	mux.HandleFunc("/api/where/arrivals-and-departures-for-stop/1_75403.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":{"entry":{"arrivalsAndDepartures":[
			{"routeId":"1_8","routeShortName":"8","tripHeadsign":"Seattle Center","predicted":true,"predictedArrivalTime":1700000300000,"scheduledArrivalTime":0},
			{"routeId":"1_44","routeShortName":"44","tripHeadsign":"Ballard","predicted":false,"scheduledArrivalTime":0}
		]}}}`))
	})
	mux.HandleFunc("/api/where/agencies-with-coverage.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":{"list":[],"references":{"agencies":[{"id":"1","timezone":"America/Los_Angeles"}]}}}`))
	})
	mux.HandleFunc("/api/where/stop/broken.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":404,"text":"resource not found"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOBAClient_FindStopsByRiderCodeKeepsOrder(t *testing.T) {
	srv := newOBAServer(t)
	c := OBAFactory{APIKey: "TEST"}.ForRegion(srv.URL)

	stops, err := c.FindStopsByRiderCode(context.Background(), model.LatLng{Lat: 47.6, Lng: -122.3}, 40000, "6497")
	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, "1_6497", stops[0].ID)
	assert.Equal(t, "40_6497", stops[1].ID)
}

func TestOBAClient_RoutesFollowStopOrder(t *testing.T) {
	srv := newOBAServer(t)
	c := NewOBAClient(srv.URL, "TEST", nil)

	routes, err := c.GetRoutesForStop(context.Background(), "1_6497")
	require.NoError(t, err)
	require.Len(t, routes, 3)
	assert.Equal(t, []string{"8", "44", "10"}, []string{routes[0].SpokenName(), routes[1].SpokenName(), routes[2].SpokenName()})
}

func TestOBAClient_Arrivals(t *testing.T) {
	srv := newOBAServer(t)
	c := NewOBAClient(srv.URL, "TEST", nil)

	set, err := c.GetArrivals(context.Background(), "1_6497", 35)
	require.NoError(t, err)
	require.Len(t, set.Arrivals, 2)
	assert.Equal(t, time.UnixMilli(1700000300000), set.Arrivals[0].Expected())
	assert.True(t, set.Arrivals[1].Predicted.IsZero())
	assert.Equal(t, time.UnixMilli(1700000600000), set.Arrivals[1].Expected())
}

func TestOBAClient_ArrivalsWithoutEpochs(t *testing.T) {
	srv := newOBAServer(t)
	c := NewOBAClient(srv.URL, "TEST", nil)

	set, err := c.GetArrivals(context.Background(), "1_75403", 35)
	require.NoError(t, err)
	assert.True(t, set.CurrentTime.IsZero())
	require.Len(t, set.Arrivals, 2)
	assert.True(t, set.Arrivals[0].Scheduled.IsZero())
	assert.Equal(t, time.UnixMilli(1700000300000), set.Arrivals[0].Expected())
	assert.True(t, set.Arrivals[1].Expected().IsZero())
}

func TestOBAClient_TimeZoneAndErrors(t *testing.T) {
	srv := newOBAServer(t)
	c := NewOBAClient(srv.URL, "TEST", nil)

	tz, err := c.GetRegionTimeZone(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "America/Los_Angeles", tz)

	_, err = c.GetStop(context.Background(), "broken")
	assert.Error(t, err)

	_, err = c.GetStop(context.Background(), "missing")
	assert.Error(t, err)
}
