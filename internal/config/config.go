package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// RecipientFields is the set of columns a recipient file must provide,
// in no particular order. The configured column layout must be a
// permutation of exactly these names.
var RecipientFields = []string{"email", "first_name", "company"}

// Config is the main configuration structure
type Config struct {
	Sender     SenderConfig     `yaml:"sender"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Recipients RecipientsConfig `yaml:"recipients"`
	SentLog    SentLogConfig    `yaml:"sentlog"`
	Message    MessageConfig    `yaml:"message"`
	Throttle   ThrottleConfig   `yaml:"throttle"`
	Limits     LimitsConfig     `yaml:"limits"`
	DKIM       DKIMConfig       `yaml:"dkim"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SenderConfig identifies the account the mail is sent as.
type SenderConfig struct {
	Address string `yaml:"address" validate:"omitempty,email"`
	Name    string `yaml:"name"`
}

// SMTPConfig contains relay connection settings. The username and
// secret are never read from YAML: they come exclusively from the
// OUTREACH_SMTP_USERNAME and OUTREACH_SMTP_PASSWORD environment
// variables so they cannot end up in a committed file.
type SMTPConfig struct {
	Host         string        `yaml:"host" validate:"omitempty,hostname|ip"`
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// RecipientsConfig describes the recipient source file.
type RecipientsConfig struct {
	File string `yaml:"file"`
	// Columns is the order fields appear in the file. Collaborator
	// exports disagree on ordering (email-first vs name-first), so the
	// layout is an explicit choice, checked against the first data row.
	Columns []string `yaml:"columns"`
}

// SentLogConfig describes the durable already-sent record.
type SentLogConfig struct {
	Backend string `yaml:"backend"` // file, bolt
	Path    string `yaml:"path"`
}

// MessageConfig carries the template and the fixed attachment.
type MessageConfig struct {
	Subject        string `yaml:"subject"`
	Body           string `yaml:"body"`
	BodyFile       string `yaml:"body_file"`
	Attachment     string `yaml:"attachment"`
	AttachmentName string `yaml:"attachment_name"`
}

// ThrottleConfig controls batch pacing.
type ThrottleConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	MinDelay      time.Duration `yaml:"min_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	MessageJitter time.Duration `yaml:"message_jitter"` // extra per-message sleep cap, 0 = off
}

// LimitsConfig contains safety limits.
type LimitsConfig struct {
	MaxPerRun int `yaml:"max_per_run"`
}

// DKIMConfig contains DKIM signing settings
type DKIMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Selector string `yaml:"selector"`
	KeyFile  string `yaml:"key_file"`
	Domain   string `yaml:"domain"`
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"` // Default: :9090
	Path       string `yaml:"path"`        // Default: /metrics
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Load loads configuration from a YAML file, applies defaults and
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration built purely from defaults and the
// environment, for runs without a config file.
func Default() (*Config, error) {
	cfg := &Config{}
	cfg.setDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.Timeout == 0 {
		c.SMTP.Timeout = 30 * time.Second
	}
	if c.SMTP.MaxRetries == 0 {
		c.SMTP.MaxRetries = 3
	}
	if c.SMTP.RetryBackoff == 0 {
		c.SMTP.RetryBackoff = 5 * time.Second
	}

	if c.Recipients.File == "" {
		c.Recipients.File = "recipients.csv"
	}
	if len(c.Recipients.Columns) == 0 {
		c.Recipients.Columns = append([]string(nil), RecipientFields...)
	}

	if c.SentLog.Backend == "" {
		c.SentLog.Backend = "file"
	}
	if c.SentLog.Path == "" {
		if c.SentLog.Backend == "bolt" {
			c.SentLog.Path = "sent_log.db"
		} else {
			c.SentLog.Path = "sent_log.csv"
		}
	}

	if c.Message.Subject == "" {
		c.Message.Subject = DefaultSubject
	}
	if c.Message.Body == "" && c.Message.BodyFile == "" {
		c.Message.Body = DefaultBody
	}

	if c.Throttle.BatchSize == 0 {
		c.Throttle.BatchSize = 5
	}
	if c.Throttle.MinDelay == 0 {
		c.Throttle.MinDelay = 30 * time.Second
	}
	if c.Throttle.MaxDelay == 0 {
		c.Throttle.MaxDelay = 90 * time.Second
	}

	if c.Limits.MaxPerRun == 0 {
		c.Limits.MaxPerRun = 50
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// applyEnv overlays environment variables onto the configuration.
// Credentials are env-only; the rest are optional overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("OUTREACH_SMTP_HOST"); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv("OUTREACH_SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		}
	}
	c.SMTP.Username = os.Getenv("OUTREACH_SMTP_USERNAME")
	c.SMTP.Password = os.Getenv("OUTREACH_SMTP_PASSWORD")

	if v := os.Getenv("OUTREACH_SENDER_ADDRESS"); v != "" {
		c.Sender.Address = v
	}
	if v := os.Getenv("OUTREACH_SENDER_NAME"); v != "" {
		c.Sender.Name = v
	}

	if v := os.Getenv("OUTREACH_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Throttle.BatchSize = n
		}
	}
	if v := os.Getenv("OUTREACH_MIN_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Throttle.MinDelay = d
		}
	}
	if v := os.Getenv("OUTREACH_MAX_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Throttle.MaxDelay = d
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}

	if err := validateColumns(c.Recipients.Columns); err != nil {
		return err
	}

	validBackends := map[string]bool{"file": true, "bolt": true}
	if !validBackends[c.SentLog.Backend] {
		return fmt.Errorf("invalid sentlog.backend: %s (must be file or bolt)", c.SentLog.Backend)
	}

	if c.Throttle.BatchSize < 1 {
		return fmt.Errorf("throttle.batch_size must be at least 1")
	}
	if c.Throttle.MinDelay < 0 || c.Throttle.MaxDelay < 0 {
		return fmt.Errorf("throttle delays must not be negative")
	}
	if c.Throttle.MaxDelay < c.Throttle.MinDelay {
		return fmt.Errorf("throttle.max_delay (%s) must not be less than throttle.min_delay (%s)",
			c.Throttle.MaxDelay, c.Throttle.MinDelay)
	}

	if c.Message.Body != "" && c.Message.BodyFile != "" {
		return fmt.Errorf("message.body and message.body_file are mutually exclusive")
	}

	if err := c.validateDKIM(); err != nil {
		return err
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}

// validateDKIM validates DKIM configuration
func (c *Config) validateDKIM() error {
	if !c.DKIM.Enabled {
		return nil
	}

	if c.DKIM.Selector == "" {
		return fmt.Errorf("dkim.selector is required when DKIM is enabled")
	}
	if c.DKIM.KeyFile == "" {
		return fmt.Errorf("dkim.key_file is required when DKIM is enabled")
	}
	if c.DKIM.Domain == "" {
		return fmt.Errorf("dkim.domain is required when DKIM is enabled")
	}

	return nil
}

// validateColumns checks the configured layout is a permutation of the
// known recipient fields.
func validateColumns(cols []string) error {
	if len(cols) != len(RecipientFields) {
		return fmt.Errorf("recipients.columns must list exactly %d fields (%s), got %d",
			len(RecipientFields), strings.Join(RecipientFields, ", "), len(cols))
	}
	seen := make(map[string]bool, len(cols))
	known := make(map[string]bool, len(RecipientFields))
	for _, f := range RecipientFields {
		known[f] = true
	}
	for _, col := range cols {
		if !known[col] {
			return fmt.Errorf("unknown recipient column %q (valid: %s)", col, strings.Join(RecipientFields, ", "))
		}
		if seen[col] {
			return fmt.Errorf("duplicate recipient column %q", col)
		}
		seen[col] = true
	}
	return nil
}

// RequireCredentials returns an error unless both SMTP credentials are
// present. Called before a real send, not during config validation, so
// dry runs and offline commands work without them.
func (c *Config) RequireCredentials() error {
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is not configured")
	}
	if c.SMTP.Username == "" {
		return fmt.Errorf("OUTREACH_SMTP_USERNAME is not set")
	}
	if c.SMTP.Password == "" {
		return fmt.Errorf("OUTREACH_SMTP_PASSWORD is not set")
	}
	return nil
}

// BodyTemplate returns the body template text, reading body_file if
// configured.
func (c *Config) BodyTemplate() (string, error) {
	if c.Message.BodyFile != "" {
		data, err := os.ReadFile(c.Message.BodyFile)
		if err != nil {
			return "", fmt.Errorf("failed to read body template: %w", err)
		}
		return string(data), nil
	}
	return c.Message.Body, nil
}
