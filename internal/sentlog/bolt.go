package sentlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/outreach/internal/recipient"
)

var bucketSent = []byte("sent")

// BoltStore keeps the sent log in a BoltDB file keyed by normalized
// address. The transactional put is the durability guarantee.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the sent log database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sent log directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sent log database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSent)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sent log bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Contains reports whether the normalized address was already emailed.
func (s *BoltStore) Contains(email string) bool {
	key := []byte(recipient.Normalize(email))
	found := false
	s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketSent).Get(key) != nil
		return nil
	})
	return found
}

// Append stores the record; the write is committed before returning.
func (s *BoltStore) Append(rec Record) error {
	rec.Email = recipient.Normalize(rec.Email)
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal sent log record: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSent).Put([]byte(rec.Email), data)
	})
}

// All returns the records in key order.
func (s *BoltStore) All() ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSent).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt sent log record for %s: %w", k, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
