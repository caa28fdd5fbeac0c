package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
)

func backends(t *testing.T) map[string]func(t *testing.T) ProfileStore {
	return map[string]func(t *testing.T) ProfileStore{
		"memory": func(t *testing.T) ProfileStore {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) ProfileStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "profiles.db"))
			require.NoError(t, err)
			return s
		},
		"bolt": func(t *testing.T) ProfileStore {
			s, err := NewBoltStore(filepath.Join(t.TempDir(), "profiles.bolt"))
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) ProfileStore {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			return NewRedisStoreFromClient(client, "test")
		},
	}
}

func completeProfile(id string) *profile.Profile {
	return &profile.Profile{
		PrincipalID:    id,
		City:           "Seattle",
		StopID:         "1_6497",
		StopCode:       "6497",
		RegionID:       "1",
		RegionName:     "Puget Sound",
		TransitBaseURL: "https://api.pugetsound.onebusaway.org/",
		TimeZone:       "America/Los_Angeles",
	}
}

func TestStores_SaveAndGet(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			ctx := context.Background()

			_, ok, err := s.Get(ctx, "amzn1.device")
			require.NoError(t, err)
			assert.False(t, ok)

			p := completeProfile("amzn1.device")
			p.SetExcludedRoutes("1_6497", []string{"1_8", "1_10"})
			p.MarkAnnounced(profile.FeatureClockTimes)
			require.NoError(t, s.Save(ctx, p))
			assert.Equal(t, int64(1), p.Version)

			got, ok, err := s.Get(ctx, "amzn1.device")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "Seattle", got.City)
			assert.Equal(t, int64(1), got.Version)
			assert.Equal(t, []string{"1_10", "1_8"}, profile.SortedSet(got.ExcludedRoutes("1_6497")))
			assert.True(t, got.HasAnnounced(profile.FeatureClockTimes))
		})
	}
}

func TestStores_VersionConflict(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			ctx := context.Background()

			require.NoError(t, s.Save(ctx, completeProfile("p1")))

			stale := completeProfile("p1")
			assert.ErrorIs(t, s.Save(ctx, stale), ErrVersionConflict)

			fresh, ok, err := s.Get(ctx, "p1")
			require.NoError(t, err)
			require.True(t, ok)
			fresh.SpeakClockTime = true
			require.NoError(t, s.Save(ctx, fresh))
			assert.Equal(t, int64(2), fresh.Version)

			fresh.Version = 1
			assert.ErrorIs(t, s.Save(ctx, fresh), ErrVersionConflict)
		})
	}
}

func TestStores_LinksAndDelete(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			ctx := context.Background()

			require.NoError(t, s.SaveLink(ctx, profile.IdentityLink{DeviceID: "dev", PersonID: "bob", CreatedAt: 10}))
			require.NoError(t, s.SaveLink(ctx, profile.IdentityLink{DeviceID: "dev", PersonID: "alice", CreatedAt: 20}))
			require.NoError(t, s.SaveLink(ctx, profile.IdentityLink{DeviceID: "dev", PersonID: "bob", CreatedAt: 30}))
			require.NoError(t, s.SaveLink(ctx, profile.IdentityLink{DeviceID: "other", PersonID: "carol", CreatedAt: 40}))

			links, err := s.GetLinks(ctx, "dev")
			require.NoError(t, err)
			require.Len(t, links, 2)
			assert.Equal(t, "alice", links[0].PersonID)
			assert.Equal(t, "bob", links[1].PersonID)
			assert.Equal(t, int64(30), links[1].CreatedAt)

			require.NoError(t, s.Save(ctx, completeProfile("dev")))
			require.NoError(t, s.Save(ctx, completeProfile("bob")))
			require.NoError(t, s.DeleteAll(ctx, []string{"dev", "bob", "missing"}))
			require.NoError(t, s.DeleteLinks(ctx, links))

			_, ok, err := s.Get(ctx, "bob")
			require.NoError(t, err)
			assert.False(t, ok)

			links, err = s.GetLinks(ctx, "dev")
			require.NoError(t, err)
			assert.Empty(t, links)

			links, err = s.GetLinks(ctx, "other")
			require.NoError(t, err)
			assert.Len(t, links, 1)
		})
	}
}

func TestStores_RejectEmptyKeys(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			ctx := context.Background()

			_, _, err := s.Get(ctx, " ")
			assert.ErrorIs(t, err, ErrInvalidKey)
			assert.ErrorIs(t, s.Save(ctx, &profile.Profile{}), ErrInvalidKey)
			assert.ErrorIs(t, s.SaveLink(ctx, profile.IdentityLink{DeviceID: "dev"}), ErrInvalidKey)
			assert.ErrorIs(t, s.SaveEnableEvent(ctx, profile.EnableEvent{}), ErrInvalidKey)
		})
	}
}

func TestSQLiteStore_EnableEventsAppend(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "profiles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	require.NoError(t, s.SaveEnableEvent(ctx, profile.EnableEvent{PrincipalID: "dev", EpochSeconds: 1}))
	require.NoError(t, s.SaveEnableEvent(ctx, profile.EnableEvent{PrincipalID: "dev", EpochSeconds: 2}))

	n, err := s.CountEnableEvents(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryStore_EnableEvents(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SaveEnableEvent(context.Background(), profile.EnableEvent{PrincipalID: "dev", EpochSeconds: 5}))
	events := s.EnableEvents()
	require.Len(t, events, 1)
	assert.Equal(t, int64(5), events[0].EpochSeconds)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Settings{Driver: "dynamo"})
	assert.Error(t, err)

	s, err := Open(context.Background(), Settings{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}
