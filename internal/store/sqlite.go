package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
)

// SQLiteStore implements ProfileStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ ProfileStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and if needed creates) the database at path.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "sqlite store: creating database directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: opening database")
	}
	// A single writer keeps version checks and the busy handler simple.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite store: enabling WAL mode")
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite store: creating schema")
	}

	log.Info().Str("component", "store").Str("path", path).Msg("SQLite profile store initialized")
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS profiles (
			principal_id TEXT PRIMARY KEY,
			data         TEXT NOT NULL,
			version      INTEGER NOT NULL,
			updated_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS identity_links (
			device_id  TEXT NOT NULL,
			person_id  TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (device_id, person_id)
		);

		CREATE TABLE IF NOT EXISTS enable_events (
			event_id      TEXT PRIMARY KEY,
			principal_id  TEXT NOT NULL,
			epoch_seconds INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_enable_events_principal ON enable_events(principal_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get looks up a profile by principal id.
func (s *SQLiteStore) Get(ctx context.Context, principalID string) (*profile.Profile, bool, error) {
	if err := validKey(principalID); err != nil {
		return nil, false, err
	}
	var (
		data    string
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, version FROM profiles WHERE principal_id = ?`, principalID,
	).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "sqlite store: get profile")
	}
	p, err := profile.Unmarshal([]byte(data))
	if err != nil {
		return nil, false, err
	}
	p.PrincipalID = principalID
	p.Version = version
	return p, true, nil
}

// Save inserts a new profile (Version 0) or updates one whose version matches.
func (s *SQLiteStore) Save(ctx context.Context, p *profile.Profile) error {
	if err := validKey(p.PrincipalID); err != nil {
		return err
	}
	next := p.Version + 1
	stored := p.Clone()
	stored.Version = next
	data, err := profile.Marshal(stored)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)

	var res sql.Result
	if p.Version == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO profiles (principal_id, data, version, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(principal_id) DO NOTHING
		`, p.PrincipalID, string(data), next, now)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE profiles SET data = ?, version = ?, updated_at = ?
			WHERE principal_id = ? AND version = ?
		`, string(data), next, now, p.PrincipalID, p.Version)
	}
	if err != nil {
		return errors.Wrap(err, "sqlite store: save profile")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "sqlite store: save profile rows")
	}
	if n == 0 {
		return ErrVersionConflict
	}
	p.Version = next
	return nil
}

// DeleteAll removes every listed profile in one transaction.
func (s *SQLiteStore) DeleteAll(ctx context.Context, principalIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite store: begin delete")
	}
	defer tx.Rollback()
	for _, id := range principalIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE principal_id = ?`, id); err != nil {
			return errors.Wrapf(err, "sqlite store: delete profile %s", id)
		}
	}
	return errors.Wrap(tx.Commit(), "sqlite store: commit delete")
}

// GetLinks returns the links recorded for a device ordered by person id.
func (s *SQLiteStore) GetLinks(ctx context.Context, deviceID string) ([]profile.IdentityLink, error) {
	if err := validKey(deviceID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, person_id, created_at FROM identity_links
		WHERE device_id = ? ORDER BY person_id
	`, deviceID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: get links")
	}
	defer rows.Close()

	links := []profile.IdentityLink{}
	for rows.Next() {
		var link profile.IdentityLink
		if err := rows.Scan(&link.DeviceID, &link.PersonID, &link.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "sqlite store: scan link")
		}
		links = append(links, link)
	}
	return links, errors.Wrap(rows.Err(), "sqlite store: iterate links")
}

// SaveLink records or overwrites a device/person link.
func (s *SQLiteStore) SaveLink(ctx context.Context, link profile.IdentityLink) error {
	if err := validLink(link); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identity_links (device_id, person_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(device_id, person_id) DO UPDATE SET created_at = excluded.created_at
	`, link.DeviceID, link.PersonID, link.CreatedAt)
	return errors.Wrap(err, "sqlite store: save link")
}

// DeleteLinks removes the listed links.
func (s *SQLiteStore) DeleteLinks(ctx context.Context, links []profile.IdentityLink) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite store: begin delete links")
	}
	defer tx.Rollback()
	for _, link := range links {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM identity_links WHERE device_id = ? AND person_id = ?`,
			link.DeviceID, link.PersonID,
		); err != nil {
			return errors.Wrap(err, "sqlite store: delete link")
		}
	}
	return errors.Wrap(tx.Commit(), "sqlite store: commit delete links")
}

// SaveEnableEvent appends an enable event.
func (s *SQLiteStore) SaveEnableEvent(ctx context.Context, event profile.EnableEvent) error {
	if err := validKey(event.PrincipalID); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enable_events (event_id, principal_id, epoch_seconds) VALUES (?, ?, ?)`,
		event.ID, event.PrincipalID, event.EpochSeconds,
	)
	return errors.Wrap(err, "sqlite store: save enable event")
}

// CountEnableEvents returns how many enable events exist for a principal.
func (s *SQLiteStore) CountEnableEvents(ctx context.Context, principalID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enable_events WHERE principal_id = ?`, principalID,
	).Scan(&n)
	return n, errors.Wrap(err, "sqlite store: count enable events")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
