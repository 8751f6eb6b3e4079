package scan

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScanLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantKind Kind
		wantSev  Severity
		wantNone bool
	}{
		{
			name:     "hardcoded password",
			line:     `password = "hunter2-prod"`,
			wantKind: KindHardcodedCredential,
			wantSev:  SeverityHigh,
		},
		{
			name:     "hardcoded api key",
			line:     `API_KEY: 'sk-live-something'`,
			wantKind: KindHardcodedCredential,
			wantSev:  SeverityHigh,
		},
		{
			name:     "env lookup exempted",
			line:     `password = os.Getenv("SMTP_PASSWORD")`,
			wantNone: true,
		},
		{
			name:     "python environ exempted",
			line:     `password = os.environ["SMTP_PASSWORD"]`,
			wantNone: true,
		},
		{
			name:     "long token",
			line:     `signing_key = "YWJjZGVmZ2hpamtsbW5vcHFyc3R1dnd4eXowMTIzNDU2Nzg5"`,
			wantKind: KindSecretToken,
			wantSev:  SeverityMedium,
		},
		{
			name:     "short value not a token",
			line:     `version = "1.2.3"`,
			wantNone: true,
		},
		{
			name:     "os.system call",
			line:     `os.system("rm -rf " + path)`,
			wantKind: KindRiskyExec,
			wantSev:  SeverityMedium,
		},
		{
			name:     "subprocess call",
			line:     `subprocess.run(cmd, shell=True)`,
			wantKind: KindRiskyExec,
			wantSev:  SeverityMedium,
		},
		{
			name:     "exec.Command call",
			line:     `out, err := exec.Command(name, args...).Output()`,
			wantKind: KindRiskyExec,
			wantSev:  SeverityMedium,
		},
		{
			name:     "plain code",
			line:     `count := len(recipients)`,
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanLine("f.go", 1, tt.line)
			if tt.wantNone {
				if len(got) != 0 {
					t.Fatalf("scanLine() = %+v, want none", got)
				}
				return
			}
			if len(got) == 0 {
				t.Fatal("scanLine() = none, want a finding")
			}
			if got[0].Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", got[0].Kind, tt.wantKind)
			}
			if got[0].Severity != tt.wantSev {
				t.Errorf("severity = %s, want %s", got[0].Severity, tt.wantSev)
			}
		})
	}
}

func TestScanTree(t *testing.T) {
	root := t.TempDir()

	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("app/main.py", "import os\npassword = 'letmein'\nprint('hi')\n")
	write("app/clean.py", "x = 1\n")
	write(".git/config", "password = 'should-not-be-seen'\n")
	write("vendor/dep.go", `var secret = "also-hidden"`+"\n")
	write("bin/blob", "abc\x00def password='x'\n")

	s := NewScanner(testLogger())
	findings, err := s.Scan(root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(findings) != 1 {
		t.Fatalf("Scan() = %d findings, want 1: %+v", len(findings), findings)
	}
	f := findings[0]
	if !strings.HasSuffix(f.File, filepath.Join("app", "main.py")) {
		t.Errorf("file = %s, want app/main.py", f.File)
	}
	if f.Line != 2 {
		t.Errorf("line = %d, want 2", f.Line)
	}
	if f.Severity != SeverityHigh {
		t.Errorf("severity = %s, want high", f.Severity)
	}
}

func TestScanSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.py")
	if err := os.WriteFile(path, []byte("token = 'abc123secret'\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewScanner(testLogger())
	findings, err := s.Scan(path)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("Scan() = %d findings, want 1", len(findings))
	}
}

func TestScanMissingRoot(t *testing.T) {
	s := NewScanner(testLogger())
	if _, err := s.Scan(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("Scan() error = nil, want error for missing root")
	}
}

func TestReportSummaryAndExitSignal(t *testing.T) {
	findings := []Finding{
		{File: "a.py", Line: 1, Kind: KindHardcodedCredential, Severity: SeverityHigh, Content: "password = 'x'"},
		{File: "a.py", Line: 9, Kind: KindRiskyExec, Severity: SeverityMedium, Content: "os.system(cmd)"},
		{File: "b.go", Line: 3, Kind: KindSecretToken, Severity: SeverityMedium, Content: "k := \"...\""},
	}
	r := NewReport("src", findings)

	if r.Summary.Total != 3 {
		t.Errorf("total = %d, want 3", r.Summary.Total)
	}
	if r.Summary.FilesWithFindings != 2 {
		t.Errorf("files = %d, want 2", r.Summary.FilesWithFindings)
	}
	if r.Summary.BySeverity[SeverityHigh] != 1 || r.Summary.BySeverity[SeverityMedium] != 2 {
		t.Errorf("by severity = %+v", r.Summary.BySeverity)
	}
	if !r.HasHighSeverity() {
		t.Error("HasHighSeverity() = false, want true")
	}

	mediumOnly := NewReport("src", findings[1:])
	if mediumOnly.HasHighSeverity() {
		t.Error("HasHighSeverity() = true for medium-only findings")
	}
}

func TestReportWriteText(t *testing.T) {
	r := NewReport("src", []Finding{
		{File: "a.py", Line: 2, Kind: KindHardcodedCredential, Severity: SeverityHigh, Content: "password = 'x'"},
	})
	var buf bytes.Buffer
	if err := r.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "a.py:2") {
		t.Errorf("output missing file:line: %q", out)
	}
	if !strings.Contains(out, "1 high") {
		t.Errorf("output missing severity summary: %q", out)
	}

	buf.Reset()
	empty := NewReport("src", nil)
	if err := empty.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no findings") {
		t.Errorf("empty report output = %q", buf.String())
	}
}

func TestReportWriteJSON(t *testing.T) {
	r := NewReport("src", []Finding{
		{File: "a.py", Line: 2, Kind: KindHardcodedCredential, Severity: SeverityHigh, Content: "password = 'x'"},
	})
	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Summary.Total != 1 {
		t.Errorf("decoded total = %d, want 1", decoded.Summary.Total)
	}
}
