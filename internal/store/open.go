package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverBolt   = "bolt"
)

// Settings selects and configures a backend.
type Settings struct {
	Driver     string
	SQLitePath string
	BoltPath   string
	Redis      RedisSettings
}

// Open builds the backend named by s.Driver.
func Open(ctx context.Context, s Settings) (ProfileStore, error) {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(s.SQLitePath)
	case DriverRedis:
		return NewRedisStore(ctx, s.Redis)
	case DriverBolt:
		return NewBoltStore(s.BoltPath)
	default:
		return nil, errors.Errorf("unknown store driver %q", s.Driver)
	}
}
