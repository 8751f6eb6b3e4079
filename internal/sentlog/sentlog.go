// Package sentlog provides the durable record of addresses already
// emailed. The log only ever grows: an address present in it is never
// sent to again for the lifetime of the log.
package sentlog

import (
	"fmt"
	"time"
)

// Record is one durable "this address was already emailed" fact.
type Record struct {
	Email  string    `json:"email"` // normalized
	SentAt time.Time `json:"sent_at"`
	RunID  string    `json:"run_id,omitempty"`
}

// Store is the dedup contract the pipeline depends on. Append must be
// durable before it returns: a crash right after an Append must not
// lose the record, and a crash right before must not falsely mark the
// address as sent.
type Store interface {
	Contains(email string) bool
	Append(rec Record) error
	All() ([]Record, error)
	Close() error
}

// Open creates a Store for the configured backend.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "file":
		return OpenFileStore(path)
	case "bolt":
		return OpenBoltStore(path)
	default:
		return nil, fmt.Errorf("unknown sentlog backend: %s", backend)
	}
}
