// Package auditlog provides a bbolt-backed persistent store for the
// gateway's security audit trail.
package auditlog

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/avancel/dashgate/internal/uuid"
)

var bucketName = []byte("audit")

// Entry is one audit trail row. ID and CreatedAt are filled by Append when
// zero.
type Entry struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists audit entries in a bbolt database.
type Store struct {
	db *bbolt.DB
}

// NewStore returns a Store backed by the given bbolt database.
func NewStore(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) a bbolt database at path and returns a Store.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}
	return NewStore(db), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes an entry. Keys are time-prefixed so a cursor scan returns
// entries in chronological order.
func (s *Store) Append(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}
	key := []byte(e.CreatedAt.UTC().Format(time.RFC3339Nano) + ":" + e.ID)

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// List returns all entries, newest first. Corrupt rows are skipped.
func (s *Store) List() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}
