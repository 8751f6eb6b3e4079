package sentlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/foxzi/outreach/internal/recipient"
)

// FileStore keeps the sent log as an append-only delimited text file,
// one record per line: email,timestamp,run_id. On open the whole file
// is read into a membership set; Append writes and syncs before
// returning. A missing file means nothing has been sent yet.
type FileStore struct {
	f    *os.File
	w    *csv.Writer
	seen map[string]Record
	// order preserves append order for All
	order []string
}

// OpenFileStore opens or creates the sent log at path.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open sent log: %w", err)
	}

	s := &FileStore{
		f:    f,
		seen: make(map[string]Record),
	}

	if err := s.loadExisting(); err != nil {
		f.Close()
		return nil, err
	}

	// Position at the end for appends.
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to seek sent log: %w", err)
	}
	s.w = csv.NewWriter(f)

	return s, nil
}

func (s *FileStore) loadExisting() error {
	reader := csv.NewReader(s.f)
	reader.FieldsPerRecord = -1

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read sent log: %w", err)
		}
		if len(row) == 0 || row[0] == "" {
			continue
		}

		rec := Record{Email: recipient.Normalize(row[0])}
		if len(row) > 1 {
			if ts, err := time.Parse(time.RFC3339, row[1]); err == nil {
				rec.SentAt = ts
			}
		}
		if len(row) > 2 {
			rec.RunID = row[2]
		}

		if _, ok := s.seen[rec.Email]; !ok {
			s.order = append(s.order, rec.Email)
		}
		s.seen[rec.Email] = rec
	}

	return nil
}

// Contains reports whether the normalized address was already emailed.
func (s *FileStore) Contains(email string) bool {
	_, ok := s.seen[recipient.Normalize(email)]
	return ok
}

// Append writes the record and flushes it to stable storage before
// returning.
func (s *FileStore) Append(rec Record) error {
	rec.Email = recipient.Normalize(rec.Email)
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}

	row := []string{rec.Email, rec.SentAt.UTC().Format(time.RFC3339), rec.RunID}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("failed to write sent log record: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("failed to flush sent log record: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync sent log: %w", err)
	}

	if _, ok := s.seen[rec.Email]; !ok {
		s.order = append(s.order, rec.Email)
	}
	s.seen[rec.Email] = rec
	return nil
}

// All returns the records in append order.
func (s *FileStore) All() ([]Record, error) {
	out := make([]Record, 0, len(s.order))
	for _, email := range s.order {
		out = append(out, s.seen[email])
	}
	return out, nil
}

// Close closes the underlying file.
func (s *FileStore) Close() error {
	return s.f.Close()
}
