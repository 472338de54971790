package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"LandScout/internal/domain"
	"LandScout/internal/mailbox"
)

const (
	defaultTimezone = "Europe/Madrid"
	configPathEnv   = "LANDSCOUT_CONFIG"

	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	imapHostEnv       = "IMAP_HOST"
	imapPortEnv       = "IMAP_PORT"
	imapSSLEnv        = "IMAP_SSL"
	imapUserEnv       = "IMAP_USER"
	imapPasswordEnv   = "IMAP_PASSWORD"
	imapFolderEnv     = "IMAP_FOLDER"
	imapQueryEnv      = "IMAP_SEARCH_QUERY"
	maxItemsEnv       = "MAX_EMAILS_PER_RUN"
	logLevelEnv       = "LOG_LEVEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	enrichmentURLEnv  = "ENRICHMENT_URL"
	enrichmentKeyEnv  = "ENRICHMENT_API_KEY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Mailbox       MailboxConfig      `yaml:"mailbox"`
	Watermark     WatermarkConfig    `yaml:"watermark"`
	Parser        ParserConfig       `yaml:"parser"`
	Scoring       ScoringConfig      `yaml:"scoring"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Enrichment    EnrichmentConfig   `yaml:"enrichment"`
	Notifications NotificationConfig `yaml:"notifications"`
	Metrics       MetricsConfig      `yaml:"metrics"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DatabaseConfig describes the record store connection.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=postgres sqlite"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// MailboxConfig describes where notifications are read from.
type MailboxConfig struct {
	Backend            string        `yaml:"backend" validate:"oneof=imap mbox"`
	Host               string        `yaml:"host" validate:"required_if=Backend imap"`
	Port               int           `yaml:"port" validate:"min=1,max=65535"`
	UseTLS             bool          `yaml:"ssl"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Folder             string        `yaml:"folder" validate:"required"`
	FallbackFolder     string        `yaml:"fallbackFolder"`
	SearchQuery        string        `yaml:"searchQuery"`
	MaxItems           int           `yaml:"maxItems" validate:"min=1"`
	DialTimeout        time.Duration `yaml:"dialTimeout"`
	SessionTimeout     time.Duration `yaml:"sessionTimeout"`
	MboxPath           string        `yaml:"mboxPath" validate:"required_if=Backend mbox"`
	SourcePrefix       string        `yaml:"sourcePrefix"`
}

// IDPrefix is the source_id prefix for ingested items. Unless set explicitly it
// follows the backend, so mbox ordinals never collide with IMAP UIDs.
func (m MailboxConfig) IDPrefix() string {
	switch {
	case m.SourcePrefix != "":
		return m.SourcePrefix
	case m.Backend != "":
		return m.Backend
	default:
		return "imap"
	}
}

// WatermarkConfig selects the durable watermark backend.
type WatermarkConfig struct {
	Backend string `yaml:"backend" validate:"oneof=database file"`
	Path    string `yaml:"path" validate:"required_if=Backend file"`
}

// ParserConfig lists the parser strategies tried in order.
type ParserConfig struct {
	Strategies []string `yaml:"strategies" validate:"min=1,dive,required"`
}

// ScoringConfig carries the default weight table and the digest threshold.
type ScoringConfig struct {
	DefaultWeights map[string]float64 `yaml:"defaultWeights"`
	DigestMinScore float64            `yaml:"digestMinScore" validate:"min=0,max=100"`
}

// SchedulerConfig defines when ingestion and rescoring run.
type SchedulerConfig struct {
	Ingest     []string       `yaml:"ingest" validate:"dive,required"`
	Rescore    string         `yaml:"rescore"`
	Timezone   string         `yaml:"timezone"`
	JobTimeout time.Duration  `yaml:"jobTimeout"`
	location   *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// EnrichmentConfig points at the attribute enrichment service; an empty URL disables it.
type EnrichmentConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase" validate:"omitempty,url"`
}

// MetricsConfig sets the Prometheus listener; empty disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

// Load reads YAML configuration from LANDSCOUT_CONFIG (if set) and applies environment overrides.
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom is Load with an explicit file path; an empty path skips the file.
func LoadFrom(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			// decoding over the defaults keeps every key the file leaves out
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Parser.Strategies) == 0 {
		cfg.Parser.Strategies = defaultConfig().Parser.Strategies
	}

	return cfg
}

// Validate checks the struct tags, the search expression and the weight table.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.SearchQuery(); err != nil {
		return fmt.Errorf("config: mailbox.searchQuery: %w", err)
	}
	if _, err := c.Weights(); err != nil {
		return fmt.Errorf("config: scoring.defaultWeights: %w", err)
	}
	return nil
}

// SearchQuery parses the configured mailbox search expression.
func (c Config) SearchQuery() (domain.SearchQuery, error) {
	return mailbox.ParseQuery(c.Mailbox.SearchQuery)
}

// Weights converts the configured default weight table.
func (c Config) Weights() (domain.Weights, error) {
	weights := make(domain.Weights, len(c.Scoring.DefaultWeights))
	for name, w := range c.Scoring.DefaultWeights {
		criterion, err := domain.ParseCriterionName(name)
		if err != nil {
			return nil, err
		}
		weights[criterion] = w
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return weights, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}

	if v := os.Getenv(imapHostEnv); v != "" {
		c.Mailbox.Host = v
	}
	if v := os.Getenv(imapPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Mailbox.Port = port
		} else {
			log.Printf("config: ignoring %s=%q: %v", imapPortEnv, v, err)
		}
	}
	if v := os.Getenv(imapSSLEnv); v != "" {
		if ssl, err := strconv.ParseBool(v); err == nil {
			c.Mailbox.UseTLS = ssl
		} else {
			log.Printf("config: ignoring %s=%q: %v", imapSSLEnv, v, err)
		}
	}
	if v := os.Getenv(imapUserEnv); v != "" {
		c.Mailbox.User = v
	}
	if v := os.Getenv(imapPasswordEnv); v != "" {
		c.Mailbox.Password = v
	}
	if v := os.Getenv(imapFolderEnv); v != "" {
		c.Mailbox.Folder = v
	}
	if v := os.Getenv(imapQueryEnv); v != "" {
		c.Mailbox.SearchQuery = v
	}
	if v := os.Getenv(maxItemsEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Mailbox.MaxItems = n
		} else {
			log.Printf("config: ignoring %s=%q: %v", maxItemsEnv, v, err)
		}
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(enrichmentURLEnv); v != "" {
		c.Enrichment.URL = v
	}
	if v := os.Getenv(enrichmentKeyEnv); v != "" {
		c.Enrichment.APIKey = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		tz = defaultTimezone
		if loc, err = time.LoadLocation(tz); err != nil {
			loc = time.UTC
		}
	}
	c.Scheduler.Timezone = tz
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	weights := make(map[string]float64, len(domain.Criteria))
	for name, w := range domain.DefaultWeights() {
		weights[string(name)] = w
	}

	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/landscout.db"},
		Mailbox: MailboxConfig{
			Backend:        "imap",
			Host:           "imap.gmail.com",
			Port:           993,
			UseTLS:         true,
			Folder:         "Idealista",
			FallbackFolder: "INBOX",
			SearchQuery:    "ALL",
			MaxItems:       200,
			DialTimeout:    30 * time.Second,
			SessionTimeout: 10 * time.Minute,
		},
		Watermark: WatermarkConfig{Backend: "database", Path: "data/watermarks.jsonl"},
		Parser:    ParserConfig{Strategies: []string{"idealista"}},
		Scoring:   ScoringConfig{DefaultWeights: weights, DigestMinScore: 60},
		Scheduler: SchedulerConfig{
			Ingest:     []string{"0 7 * * *", "0 19 * * *"},
			Timezone:   defaultTimezone,
			JobTimeout: 30 * time.Minute,
		},
		Enrichment: EnrichmentConfig{Timeout: 15 * time.Second},
	}
}
