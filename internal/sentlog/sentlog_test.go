package sentlog

import (
	"path/filepath"
	"testing"
	"time"
)

func openStores(t *testing.T) map[string]func() (Store, string) {
	t.Helper()
	return map[string]func() (Store, string){
		"file": func() (Store, string) {
			path := filepath.Join(t.TempDir(), "sent.csv")
			s, err := OpenFileStore(path)
			if err != nil {
				t.Fatalf("OpenFileStore() error = %v", err)
			}
			return s, path
		},
		"bolt": func() (Store, string) {
			path := filepath.Join(t.TempDir(), "sent.db")
			s, err := OpenBoltStore(path)
			if err != nil {
				t.Fatalf("OpenBoltStore() error = %v", err)
			}
			return s, path
		},
	}
}

func TestStore_AppendAndContains(t *testing.T) {
	for name, open := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			s, _ := open()
			defer s.Close()

			if s.Contains("jane@x.com") {
				t.Error("fresh store should not contain anything")
			}

			rec := Record{Email: "Jane@X.com", SentAt: time.Now().UTC(), RunID: "run-1"}
			if err := s.Append(rec); err != nil {
				t.Fatalf("Append() error = %v", err)
			}

			// Lookup is by normalized address regardless of input case.
			if !s.Contains("jane@x.com") {
				t.Error("Contains() = false after Append")
			}
			if !s.Contains("  JANE@x.com ") {
				t.Error("Contains() should normalize before lookup")
			}
			if s.Contains("bob@y.org") {
				t.Error("Contains() = true for address never appended")
			}
		})
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	for name, open := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			s, path := open()

			for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
				if err := s.Append(Record{Email: email, RunID: "run-1"}); err != nil {
					t.Fatalf("Append(%s) error = %v", email, err)
				}
			}
			if err := s.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			reopened, err := Open(name, path)
			if err != nil {
				t.Fatalf("Open(%s) error = %v", name, err)
			}
			defer reopened.Close()

			for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
				if !reopened.Contains(email) {
					t.Errorf("Contains(%s) = false after reopen", email)
				}
			}

			all, err := reopened.All()
			if err != nil {
				t.Fatalf("All() error = %v", err)
			}
			if len(all) != 3 {
				t.Errorf("All() len = %d, want 3", len(all))
			}
			for _, rec := range all {
				if rec.RunID != "run-1" {
					t.Errorf("record %s lost run ID: %+v", rec.Email, rec)
				}
				if rec.SentAt.IsZero() {
					t.Errorf("record %s has zero timestamp", rec.Email)
				}
			}
		})
	}
}

func TestStore_MissingFileMeansEmpty(t *testing.T) {
	for name := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "never-written")
			s, err := Open(name, path)
			if err != nil {
				t.Fatalf("Open() on absent path error = %v", err)
			}
			defer s.Close()
			if s.Contains("anyone@x.com") {
				t.Error("absent log should read as empty, not as an error")
			}
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("redis", "x"); err == nil {
		t.Error("Open() expected error for unknown backend")
	}
}

func TestFileStore_DuplicateAppendKeepsSingleEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent.csv")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Append(Record{Email: "jane@x.com"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(Record{Email: "JANE@X.COM"}); err != nil {
		t.Fatal(err)
	}

	all, err := s.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("All() len = %d, want 1 unique normalized address", len(all))
	}
}
