package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
)

var (
	bucketProfiles = []byte("profiles")
	bucketLinks    = []byte("identity_links")
	bucketEvents   = []byte("enable_events")
)

const linkKeySep = "\x00"

// BoltStore implements ProfileStore in a single bbolt file.
type BoltStore struct {
	db *bolt.DB
}

var _ ProfileStore = (*BoltStore)(nil)

// NewBoltStore opens the bbolt file at path, creating buckets on first use.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "bolt store: creating directory")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "bolt store: open")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketProfiles, bucketLinks, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "bolt store: create buckets")
	}
	return &BoltStore{db: db}, nil
}

// Get looks up a profile by principal id.
func (s *BoltStore) Get(_ context.Context, principalID string) (*profile.Profile, bool, error) {
	if err := validKey(principalID); err != nil {
		return nil, false, err
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketProfiles).Get([]byte(principalID)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "bolt store: get profile")
	}
	if data == nil {
		return nil, false, nil
	}
	p, err := profile.Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// Save writes the profile if the stored version matches.
func (s *BoltStore) Save(_ context.Context, p *profile.Profile) error {
	if err := validKey(p.PrincipalID); err != nil {
		return err
	}
	next := p.Version + 1
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		var current int64
		if v := b.Get([]byte(p.PrincipalID)); v != nil {
			existing, err := profile.Unmarshal(v)
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
		return b.Put([]byte(p.PrincipalID), payload)
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		return errors.Wrap(err, "bolt store: save profile")
	}
	p.Version = next
	return nil
}

// DeleteAll removes every listed profile.
func (s *BoltStore) DeleteAll(_ context.Context, principalIDs []string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		for _, id := range principalIDs {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "bolt store: delete profiles")
}

// GetLinks returns the links recorded for a device ordered by person id.
func (s *BoltStore) GetLinks(_ context.Context, deviceID string) ([]profile.IdentityLink, error) {
	if err := validKey(deviceID); err != nil {
		return nil, err
	}
	links := []profile.IdentityLink{}
	prefix := []byte(deviceID + linkKeySep)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLinks).Cursor()
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var created int64
			if len(v) == 8 {
				created = int64(binary.BigEndian.Uint64(v))
			}
			links = append(links, profile.IdentityLink{
				DeviceID:  deviceID,
				PersonID:  strings.TrimPrefix(string(k), string(prefix)),
				CreatedAt: created,
			})
		}
		return nil
	})
	return links, errors.Wrap(err, "bolt store: get links")
}

// SaveLink records or overwrites a device/person link.
func (s *BoltStore) SaveLink(_ context.Context, link profile.IdentityLink) error {
	if err := validLink(link); err != nil {
		return err
	}
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, uint64(link.CreatedAt))
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLinks).Put([]byte(link.DeviceID+linkKeySep+link.PersonID), value)
	})
	return errors.Wrap(err, "bolt store: save link")
}

// DeleteLinks removes the listed links.
func (s *BoltStore) DeleteLinks(_ context.Context, links []profile.IdentityLink) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLinks)
		for _, link := range links {
			if err := b.Delete([]byte(link.DeviceID + linkKeySep + link.PersonID)); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "bolt store: delete links")
}

// SaveEnableEvent appends an enable event keyed by the bucket sequence.
func (s *BoltStore) SaveEnableEvent(_ context.Context, event profile.EnableEvent) error {
	if err := validKey(event.PrincipalID); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "bolt store: encode enable event")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, payload)
	})
	return errors.Wrap(err, "bolt store: save enable event")
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
