package dialog

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
	"github.com/zhouzirui/transit-voice/backend/internal/model/transit"
	"github.com/zhouzirui/transit-voice/backend/internal/service/identity"
	transitsvc "github.com/zhouzirui/transit-voice/backend/internal/service/transit"
	"github.com/zhouzirui/transit-voice/backend/internal/store"
)

var (
	testNow     = time.Date(2026, 10, 18, 22, 0, 0, 0, time.UTC)
	seattle     = transit.LatLng{Lat: 47.6062, Lng: -122.3321}
	pugetSound  = transit.Region{ID: "1", Name: "Puget Sound", BaseURL: "https://puget.example/", Active: true}
	errUpstream = errors.New("upstream down")
)

type fakeGeo struct {
	mu        sync.Mutex
	cities    map[string]transit.LatLng
	regions   []transit.Region
	err       error
	geocodes  int
	noRegions bool
}

func newFakeGeo() *fakeGeo {
	return &fakeGeo{
		cities:  map[string]transit.LatLng{"seattle": seattle},
		regions: []transit.Region{pugetSound},
	}
}

func (g *fakeGeo) Geocode(_ context.Context, text string) (transit.LatLng, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.geocodes++
	if g.err != nil {
		return transit.LatLng{}, false, g.err
	}
	loc, ok := g.cities[strings.ToLower(text)]
	return loc, ok, nil
}

func (g *fakeGeo) NearestRegion(_ context.Context, _ transit.LatLng, _ bool) (transit.Region, bool, error) {
	if g.noRegions || len(g.regions) == 0 {
		return transit.Region{}, false, nil
	}
	return g.regions[0], true, nil
}

func (g *fakeGeo) AllRegions(_ context.Context, _ bool) ([]transit.Region, error) {
	return g.regions, nil
}

type fakeTransit struct {
	stops       map[string][]transit.Stop
	routes      map[string][]transit.Route
	arrivals    map[string][]transit.Arrival
	timeZone    string
	arrivalsErr error
	searchErr   error
	searches    int
}

func newFakeTransit() *fakeTransit {
	return &fakeTransit{
		stops:    map[string][]transit.Stop{},
		routes:   map[string][]transit.Route{},
		arrivals: map[string][]transit.Arrival{},
		timeZone: "America/Los_Angeles",
	}
}

func (f *fakeTransit) ForRegion(string) transitsvc.Client { return f }

func (f *fakeTransit) FindStopsByRiderCode(_ context.Context, _ transit.LatLng, _ int, code string) ([]transit.Stop, error) {
	f.searches++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.stops[code], nil
}

func (f *fakeTransit) GetStop(_ context.Context, stopID string) (transit.StopDetail, error) {
	return transit.StopDetail{Stop: transit.Stop{ID: stopID}, Routes: f.routes[stopID]}, nil
}

func (f *fakeTransit) GetArrivals(_ context.Context, stopID string, _ int) (transit.ArrivalSet, error) {
	if f.arrivalsErr != nil {
		return transit.ArrivalSet{}, f.arrivalsErr
	}
	return transit.ArrivalSet{StopID: stopID, CurrentTime: testNow, Arrivals: f.arrivals[stopID]}, nil
}

func (f *fakeTransit) GetRoutesForStop(_ context.Context, stopID string) ([]transit.Route, error) {
	return f.routes[stopID], nil
}

func (f *fakeTransit) GetRegionTimeZone(context.Context) (string, error) {
	return f.timeZone, nil
}

// failingSaves wraps a MemoryStore and fails every Save while err is set.
type failingSaves struct {
	*store.MemoryStore
	err error
}

func (s *failingSaves) Save(ctx context.Context, p *profile.Profile) error {
	if s.err != nil {
		return s.err
	}
	return s.MemoryStore.Save(ctx, p)
}

type harness struct {
	t       *testing.T
	router  *Router
	store   *store.MemoryStore
	saves   *failingSaves
	geo     *fakeGeo
	transit *fakeTransit
	bg      *identity.Background
	session *dialog.Session
	device  string
	person  string
}

func newHarness(t *testing.T, seed ...*profile.Profile) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		store:   store.NewMemoryStore(seed...),
		geo:     newFakeGeo(),
		transit: newFakeTransit(),
		bg:      identity.NewBackground(4, time.Second),
		device:  "device-1",
	}
	h.saves = &failingSaves{MemoryStore: h.store}
	h.router = NewRouter(h.saves, h.geo, h.transit, identity.NewResolver(h.store, h.bg), Options{
		ArrivalsWindowMinutes:  35,
		StopSearchRadiusMeters: 40000,
		SpeakRegionList:        true,
		Now:                    func() time.Time { return testNow },
	})
	t.Cleanup(func() { _ = h.bg.Drain(context.Background()) })
	return h
}

func (h *harness) send(turn dialog.Turn) dialog.Reply {
	h.t.Helper()
	turn.SessionID = "session-1"
	turn.DeviceID = h.device
	turn.PersonID = h.person
	turn.Session = h.session
	reply := h.router.Handle(context.Background(), turn)
	h.session = reply.Session
	return reply
}

func (h *harness) launch() dialog.Reply {
	return h.send(dialog.Turn{Kind: dialog.TurnLaunch})
}

func (h *harness) intent(name string, slots map[string]string) dialog.Reply {
	return h.send(dialog.Turn{Kind: dialog.TurnIntent, IntentName: name, Slots: slots})
}

func (h *harness) stored(id string) *profile.Profile {
	h.t.Helper()
	p, ok, err := h.store.Get(context.Background(), id)
	require.NoError(h.t, err)
	if !ok {
		return nil
	}
	return p
}

func completeProfile(id string) *profile.Profile {
	return &profile.Profile{
		PrincipalID:    id,
		City:           "Seattle",
		StopID:         "1_75403",
		StopCode:       "75403",
		RegionID:       pugetSound.ID,
		RegionName:     pugetSound.Name,
		TransitBaseURL: pugetSound.BaseURL,
		TimeZone:       "America/Los_Angeles",
	}
}

func arrivalIn(routeID, short, headsign string, minutes int) transit.Arrival {
	return transit.Arrival{
		RouteID:        routeID,
		RouteShortName: short,
		Headsign:       headsign,
		Scheduled:      testNow.Add(time.Duration(minutes) * time.Minute),
	}
}
