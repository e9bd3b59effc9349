// Package credstore persists the single OAuth2 credential record for the
// remote storage account. The record is a tagged union: it is either empty,
// pending authorization (application credentials submitted, no token yet),
// or active (a refresh token was granted).
package credstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// State is the explicit discriminant of the credential record.
type State string

const (
	StateEmpty   State = "empty"
	StatePending State = "pending"
	StateActive  State = "active"
)

// Record is the persisted credential value. A record is Active iff it
// carries a non-empty refresh token; Get enforces that on every read.
type Record struct {
	State        State     `json:"state"`
	ClientID     string    `json:"client_id,omitempty"`
	ClientSecret string    `json:"client_secret,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IssuedAt     time.Time `json:"issued_at,omitempty"`
}

// IsActive reports whether the record can authenticate a remote client.
func (r Record) IsActive() bool {
	return r.State == StateActive && r.RefreshToken != ""
}

const credentialKey = "drive_credentials"

// Store persists settings values in a small SQLite database. The credential
// record is one keyed row; writes replace the whole row atomically.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the settings database under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "settings.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	store, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing database handle and ensures the settings table.
func NewStore(db *sql.DB) (*Store, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}
	return &Store{db: db}, nil
}

// Get reads the persisted credential record. Missing or unparseable data is
// treated as absent, never as an error: corruption must not wedge the app.
func (s *Store) Get() (Record, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, credentialKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{State: StateEmpty}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("read credentials: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{State: StateEmpty}, nil
	}

	return normalize(rec), nil
}

// normalize enforces the record invariants on read: an Active record without
// a refresh token is demoted to Pending, and a record without application
// credentials is Empty regardless of its stored tag.
func normalize(rec Record) Record {
	if rec.ClientID == "" || rec.ClientSecret == "" {
		return Record{State: StateEmpty}
	}
	switch rec.State {
	case StateActive:
		if rec.RefreshToken == "" {
			rec.State = StatePending
		}
	case StatePending:
		rec.RefreshToken = ""
	default:
		return Record{State: StateEmpty}
	}
	return rec
}

// SetPending overwrites any existing record with a fresh pending one.
func (s *Store) SetPending(clientID, clientSecret string) error {
	return s.put(Record{
		State:        StatePending,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		IssuedAt:     time.Now().UTC(),
	})
}

// SetActive overwrites the record with an active one.
func (s *Store) SetActive(clientID, clientSecret, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("refuse to store active credentials without a refresh token")
	}
	return s.put(Record{
		State:        StateActive,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: refreshToken,
		IssuedAt:     time.Now().UTC(),
	})
}

// Clear resets the record to empty.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, credentialKey); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

func (s *Store) put(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	// Single-statement upsert keeps the replace atomic for readers.
	_, err = s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		credentialKey, string(data),
	)
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
