package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
smtp:
  host: smtp.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SMTP.Port != 587 {
		t.Errorf("SMTP.Port = %d, want 587", cfg.SMTP.Port)
	}
	if cfg.Throttle.BatchSize != 5 {
		t.Errorf("Throttle.BatchSize = %d, want 5", cfg.Throttle.BatchSize)
	}
	if cfg.Throttle.MinDelay != 30*time.Second || cfg.Throttle.MaxDelay != 90*time.Second {
		t.Errorf("delay bounds = [%s, %s], want [30s, 90s]", cfg.Throttle.MinDelay, cfg.Throttle.MaxDelay)
	}
	if cfg.Limits.MaxPerRun != 50 {
		t.Errorf("Limits.MaxPerRun = %d, want 50", cfg.Limits.MaxPerRun)
	}
	if cfg.SentLog.Backend != "file" || cfg.SentLog.Path != "sent_log.csv" {
		t.Errorf("sentlog = %s/%s, want file/sent_log.csv", cfg.SentLog.Backend, cfg.SentLog.Path)
	}
	if got := cfg.Recipients.Columns; len(got) != 3 || got[0] != "email" {
		t.Errorf("Recipients.Columns = %v, want email-first default", got)
	}
	if cfg.Message.Subject == "" || cfg.Message.Body == "" {
		t.Error("expected default subject and body templates")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OUTREACH_SMTP_HOST", "relay.env.example")
	t.Setenv("OUTREACH_SMTP_PORT", "2525")
	t.Setenv("OUTREACH_SMTP_USERNAME", "user@example.com")
	t.Setenv("OUTREACH_SMTP_PASSWORD", "app-specific")
	t.Setenv("OUTREACH_BATCH_SIZE", "7")
	t.Setenv("OUTREACH_MIN_DELAY", "10s")
	t.Setenv("OUTREACH_MAX_DELAY", "20s")

	path := writeConfig(t, `
smtp:
  host: smtp.example.com
  port: 587
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SMTP.Host != "relay.env.example" {
		t.Errorf("SMTP.Host = %s, want env override", cfg.SMTP.Host)
	}
	if cfg.SMTP.Port != 2525 {
		t.Errorf("SMTP.Port = %d, want 2525", cfg.SMTP.Port)
	}
	if cfg.SMTP.Username != "user@example.com" || cfg.SMTP.Password != "app-specific" {
		t.Error("credentials not taken from environment")
	}
	if cfg.Throttle.BatchSize != 7 {
		t.Errorf("Throttle.BatchSize = %d, want 7", cfg.Throttle.BatchSize)
	}
	if cfg.Throttle.MinDelay != 10*time.Second || cfg.Throttle.MaxDelay != 20*time.Second {
		t.Errorf("delay bounds = [%s, %s], want [10s, 20s]", cfg.Throttle.MinDelay, cfg.Throttle.MaxDelay)
	}

	if err := cfg.RequireCredentials(); err != nil {
		t.Errorf("RequireCredentials() error = %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "bad column set",
			content: `
recipients:
  columns: [email, first_name, last_name]
`,
		},
		{
			name: "duplicate column",
			content: `
recipients:
  columns: [email, email, company]
`,
		},
		{
			name: "max delay below min",
			content: `
throttle:
  min_delay: 60s
  max_delay: 10s
`,
		},
		{
			name: "bad sentlog backend",
			content: `
sentlog:
  backend: redis
`,
		},
		{
			name: "dkim enabled without key",
			content: `
dkim:
  enabled: true
  domain: example.com
  selector: mail
`,
		},
		{
			name: "body and body_file together",
			content: `
message:
  body: "hello"
  body_file: body.txt
`,
		},
		{
			name: "bad log level",
			content: `
logging:
  level: verbose
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}

func TestRequireCredentials_Missing(t *testing.T) {
	t.Setenv("OUTREACH_SMTP_USERNAME", "")
	t.Setenv("OUTREACH_SMTP_PASSWORD", "")

	path := writeConfig(t, `
smtp:
  host: smtp.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.RequireCredentials(); err == nil {
		t.Error("RequireCredentials() expected error with empty env")
	}
}

func TestBodyTemplate_FromFile(t *testing.T) {
	dir := t.TempDir()
	bodyPath := filepath.Join(dir, "body.txt")
	if err := os.WriteFile(bodyPath, []byte("Hi {first_name}"), 0600); err != nil {
		t.Fatal(err)
	}

	path := writeConfig(t, `
message:
  body_file: `+bodyPath+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	body, err := cfg.BodyTemplate()
	if err != nil {
		t.Fatalf("BodyTemplate() error = %v", err)
	}
	if body != "Hi {first_name}" {
		t.Errorf("BodyTemplate() = %q", body)
	}
}
