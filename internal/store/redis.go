package store

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
)

// RedisSettings configures the redis backend.
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore implements ProfileStore on top of redis.
//
// Keys:
//
//	<prefix>:profile:<principalID>  JSON profile, version inside the document
//	<prefix>:links:<deviceID>       hash personID -> created_at
//	<prefix>:enable_events          list of JSON events
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ ProfileStore = (*RedisStore)(nil)

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, s RedisSettings) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     s.Addr,
		Password: s.Password,
		DB:       s.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "redis store: ping %s", s.Addr)
	}
	return NewRedisStoreFromClient(client, s.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "transit-voice"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) profileKey(id string) string { return s.prefix + ":profile:" + id }
func (s *RedisStore) linksKey(id string) string   { return s.prefix + ":links:" + id }
func (s *RedisStore) eventsKey() string           { return s.prefix + ":enable_events" }

// Get looks up a profile by principal id.
func (s *RedisStore) Get(ctx context.Context, principalID string) (*profile.Profile, bool, error) {
	if err := validKey(principalID); err != nil {
		return nil, false, err
	}
	data, err := s.client.Get(ctx, s.profileKey(principalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis store: get profile")
	}
	p, err := profile.Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// Save writes the profile inside a WATCH transaction so concurrent writers
// see ErrVersionConflict instead of overwriting each other.
func (s *RedisStore) Save(ctx context.Context, p *profile.Profile) error {
	if err := validKey(p.PrincipalID); err != nil {
		return err
	}
	key := s.profileKey(p.PrincipalID)
	next := p.Version + 1

	txf := func(tx *redis.Tx) error {
		var current int64
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return errors.Wrap(err, "redis store: read current profile")
		default:
			existing, err := profile.Unmarshal(data)
			if err != nil {
				return err
			}
			current = existing.Version
		}
		if current != p.Version {
			return ErrVersionConflict
		}

		stored := p.Clone()
		stored.Version = next
		payload, err := profile.Marshal(stored)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		return errors.Wrap(err, "redis store: save profile")
	}
	p.Version = next
	return nil
}

// DeleteAll removes every listed profile.
func (s *RedisStore) DeleteAll(ctx context.Context, principalIDs []string) error {
	if len(principalIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(principalIDs))
	for _, id := range principalIDs {
		keys = append(keys, s.profileKey(id))
	}
	return errors.Wrap(s.client.Del(ctx, keys...).Err(), "redis store: delete profiles")
}

// GetLinks returns the links recorded for a device ordered by person id.
func (s *RedisStore) GetLinks(ctx context.Context, deviceID string) ([]profile.IdentityLink, error) {
	if err := validKey(deviceID); err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, s.linksKey(deviceID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis store: get links")
	}
	links := make([]profile.IdentityLink, 0, len(fields))
	for personID, created := range fields {
		createdAt, _ := strconv.ParseInt(created, 10, 64)
		links = append(links, profile.IdentityLink{DeviceID: deviceID, PersonID: personID, CreatedAt: createdAt})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].PersonID < links[j].PersonID })
	return links, nil
}

// SaveLink records or overwrites a device/person link.
func (s *RedisStore) SaveLink(ctx context.Context, link profile.IdentityLink) error {
	if err := validLink(link); err != nil {
		return err
	}
	err := s.client.HSet(ctx, s.linksKey(link.DeviceID), link.PersonID, strconv.FormatInt(link.CreatedAt, 10)).Err()
	return errors.Wrap(err, "redis store: save link")
}

// DeleteLinks removes the listed links.
func (s *RedisStore) DeleteLinks(ctx context.Context, links []profile.IdentityLink) error {
	if len(links) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, link := range links {
			pipe.HDel(ctx, s.linksKey(link.DeviceID), link.PersonID)
		}
		return nil
	})
	return errors.Wrap(err, "redis store: delete links")
}

// SaveEnableEvent appends an enable event.
func (s *RedisStore) SaveEnableEvent(ctx context.Context, event profile.EnableEvent) error {
	if err := validKey(event.PrincipalID); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "redis store: encode enable event")
	}
	return errors.Wrap(s.client.RPush(ctx, s.eventsKey(), payload).Err(), "redis store: save enable event")
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
