package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/transit-voice/backend/internal/model/transit"
)

func TestComposeArrivals(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	cases := []struct {
		name string
		set  []transit.Arrival
		opts speechOptions
		want string
	}{
		{
			name: "empty",
			opts: speechOptions{WindowMinutes: 35},
			want: "There are no upcoming arrivals at your stop for the next 35 minutes.",
		},
		{
			name: "everything excluded",
			set:  []transit.Arrival{arrivalIn("1_8", "8", "Seattle Center", 4)},
			opts: speechOptions{WindowMinutes: 35, Excluded: map[string]struct{}{"1_8": {}}},
			want: "There are no upcoming arrivals for your selected routes for the next 35 minutes.",
		},
		{
			name: "sorted relative",
			set: []transit.Arrival{
				arrivalIn("1_10", "10", "Capitol Hill", 12),
				arrivalIn("1_8", "8", "Seattle Center", 1),
				arrivalIn("1_44", "44", "Ballard", 0),
			},
			want: "Route 44 to Ballard is arriving now. Route 8 to Seattle Center is arriving in 1 minute. Route 10 to Capitol Hill is arriving in 12 minutes.",
		},
		{
			name: "clock time",
			set:  []transit.Arrival{arrivalIn("1_8", "8", "Seattle Center", 5)},
			opts: speechOptions{ClockTime: true, Location: la},
			want: "Route 8 to Seattle Center is arriving at 3:05 PM.",
		},
		{
			name: "departed vehicles are skipped",
			set: []transit.Arrival{
				arrivalIn("1_8", "8", "Seattle Center", -5),
				arrivalIn("1_10", "", "", 3),
			},
			want: "Route 1_10 is arriving in 3 minutes.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set := transit.ArrivalSet{StopID: "1_75403", CurrentTime: testNow, Arrivals: tc.set}
			assert.Equal(t, tc.want, composeArrivals(set, tc.opts))
		})
	}
}

func TestComposeArrivals_PrefersPrediction(t *testing.T) {
	a := arrivalIn("1_8", "8", "Seattle Center", 10)
	a.Predicted = testNow.Add(13 * time.Minute)
	set := transit.ArrivalSet{CurrentTime: testNow, Arrivals: []transit.Arrival{a}}

	assert.Equal(t, "Route 8 to Seattle Center is arriving in 13 minutes.", composeArrivals(set, speechOptions{}))
}

func TestComposeArrivals_FallsBackToNow(t *testing.T) {
	set := transit.ArrivalSet{Arrivals: []transit.Arrival{arrivalIn("1_8", "8", "", 2)}}

	assert.Equal(t, "Route 8 is arriving in 2 minutes.", composeArrivals(set, speechOptions{Now: testNow}))
}
