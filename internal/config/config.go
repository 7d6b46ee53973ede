package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Last-item detection strategies. Counter is the default; items without a
// batch id, written by producers other than MailJobService, fall back to the
// pattern count.
const (
	LastItemPattern = "pattern"
	LastItemCounter = "counter"
)

// Mail transports.
const (
	TransportSMTP    = "smtp"
	TransportWebhook = "webhook"
)

// Config holds all runtime configuration.
//
// Values come from environment variables. When CONFIG_FILE points to a YAML
// file, its keys (the lower-cased variable names, e.g. database_url) supply
// values for variables that are not set. Only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrationsPath string

	// Queue runtime
	QueueName     string
	MailWorkers   int
	BufferSize    int
	ClaimBatch    int
	PollInterval  time.Duration
	LeaseDuration time.Duration
	ReapInterval  time.Duration

	// Mail transport
	MailTransport          string
	SMTPHost               string
	SMTPPort               int
	SMTPUser               string
	SMTPPassword           string
	SMTPInsecureSkipVerify bool
	SenderAddress          string
	SenderName             string
	WebhookURL             string
	WebhookTimeout         time.Duration

	// Maximum mails per second across all workers; 0 disables limiting.
	RateLimit int

	// Batch behaviour
	DefaultLangcode  string
	SystemSenderID   string
	LastItemStrategy string
	ChunkSize        int
}

func Load() (*Config, error) {
	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	dbURL := src.getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:        src.getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     src.getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    src.getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: src.getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL:    dbURL,
		DBMaxConns:     int32(src.getInt("DB_MAX_CONNS", 25)),
		DBMinConns:     int32(src.getInt("DB_MIN_CONNS", 5)),
		MigrationsPath: src.getEnv("MIGRATIONS_PATH", "file://migrations"),

		QueueName:     src.getEnv("QUEUE_NAME", "user_email_queue"),
		MailWorkers:   src.getInt("MAIL_WORKERS", 4),
		BufferSize:    src.getInt("BUFFER_SIZE", 100),
		ClaimBatch:    src.getInt("CLAIM_BATCH", 20),
		PollInterval:  src.getDuration("POLL_INTERVAL", 5*time.Second),
		LeaseDuration: src.getDuration("LEASE_DURATION", 60*time.Second),
		ReapInterval:  src.getDuration("REAP_INTERVAL", 30*time.Second),

		MailTransport:          strings.ToLower(src.getEnv("MAIL_TRANSPORT", TransportSMTP)),
		SMTPHost:               src.getEnv("SMTP_HOST", "localhost"),
		SMTPPort:               src.getInt("SMTP_PORT", 25),
		SMTPUser:               src.getEnv("SMTP_USER", ""),
		SMTPPassword:           src.getEnv("SMTP_PASSWORD", ""),
		SMTPInsecureSkipVerify: src.getBool("SMTP_INSECURE_SKIP_VERIFY", false),
		SenderAddress:          src.getEnv("SENDER_ADDRESS", "noreply@localhost"),
		SenderName:             src.getEnv("SENDER_NAME", "Community"),
		WebhookURL:             src.getEnv("WEBHOOK_URL", ""),
		WebhookTimeout:         src.getDuration("WEBHOOK_TIMEOUT", 10*time.Second),

		RateLimit: src.getInt("MAIL_RATE_LIMIT", 50),

		DefaultLangcode:  src.getEnv("DEFAULT_LANGCODE", "en"),
		SystemSenderID:   src.getEnv("SYSTEM_SENDER_ID", "1"),
		LastItemStrategy: strings.ToLower(src.getEnv("LAST_ITEM_STRATEGY", LastItemCounter)),
		ChunkSize:        src.getInt("CHUNK_SIZE", 50),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	tag, err := language.Parse(c.DefaultLangcode)
	if err != nil {
		return fmt.Errorf("DEFAULT_LANGCODE %q: %w", c.DefaultLangcode, err)
	}
	c.DefaultLangcode = tag.String()

	switch c.LastItemStrategy {
	case LastItemPattern, LastItemCounter:
	default:
		return fmt.Errorf("LAST_ITEM_STRATEGY must be %q or %q, got %q", LastItemPattern, LastItemCounter, c.LastItemStrategy)
	}

	switch c.MailTransport {
	case TransportSMTP:
	case TransportWebhook:
		if c.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required for the webhook transport")
		}
	default:
		return fmt.Errorf("MAIL_TRANSPORT must be %q or %q, got %q", TransportSMTP, TransportWebhook, c.MailTransport)
	}

	if c.MailWorkers <= 0 {
		return fmt.Errorf("MAIL_WORKERS must be positive")
	}
	if c.ChunkSize <= 0 || c.ChunkSize > 1000 {
		return fmt.Errorf("CHUNK_SIZE must be between 1 and 1000")
	}
	return nil
}

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func newSource(path string) (*source, error) {
	s := &source{file: map[string]string{}}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		s.file[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return s, nil
}

func (s *source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[strings.ToLower(key)]
}

func (s *source) getEnv(key, defaultVal string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *source) getInt(key string, defaultVal int) int {
	if v := s.lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func (s *source) getBool(key string, defaultVal bool) bool {
	if v := s.lookup(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func (s *source) getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := s.lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
