package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LandScout/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "landscout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg := LoadFrom("")

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "imap.gmail.com", cfg.Mailbox.Host)
	assert.Equal(t, 993, cfg.Mailbox.Port)
	assert.True(t, cfg.Mailbox.UseTLS)
	assert.Equal(t, "Idealista", cfg.Mailbox.Folder)
	assert.Equal(t, "ALL", cfg.Mailbox.SearchQuery)
	assert.Equal(t, 200, cfg.Mailbox.MaxItems)
	assert.Equal(t, []string{"0 7 * * *", "0 19 * * *"}, cfg.Scheduler.Ingest)
	assert.Equal(t, "Europe/Madrid", cfg.Scheduler.Location().String())

	weights, err := cfg.Weights()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultWeights(), weights)
}

func TestLoadFrom_FileMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://scout:secret@db:5432/landscout?sslmode=disable
mailbox:
  folder: Terrenos
  searchQuery: UNSEEN SINCE 01-Jan-2024
  sessionTimeout: 2m
scoring:
  defaultWeights:
    legal_status: 0.3
scheduler:
  rescore: "30 3 * * 0"
  timezone: Atlantic/Canary
`)

	cfg := LoadFrom(path)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "Terrenos", cfg.Mailbox.Folder)
	assert.Equal(t, "imap.gmail.com", cfg.Mailbox.Host)
	assert.Equal(t, 2*time.Minute, cfg.Mailbox.SessionTimeout)
	assert.Equal(t, "30 3 * * 0", cfg.Scheduler.Rescore)
	assert.Equal(t, "Atlantic/Canary", cfg.Scheduler.Location().String())

	query, err := cfg.SearchQuery()
	require.NoError(t, err)
	assert.True(t, query.Unseen)
	assert.Equal(t, 2024, query.Since.Year())

	weights, err := cfg.Weights()
	require.NoError(t, err)
	assert.InDelta(t, 0.3, weights[domain.LegalStatus], 1e-9)
	assert.InDelta(t, 0.20, weights[domain.TransportAccess], 1e-9)
}

func TestLoadFrom_BrokenFileFallsBack(t *testing.T) {
	path := writeConfig(t, "mailbox: [not a map")

	cfg := LoadFrom(path)
	assert.Equal(t, "Idealista", cfg.Mailbox.Folder)

	cfg = LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, "Idealista", cfg.Mailbox.Folder)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "mailbox:\n  folder: FromFile\n")
	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDriverEnv, "POSTGRES")
	t.Setenv(databaseDSNEnv, "postgres://env")
	t.Setenv(imapHostEnv, "imap.example.com")
	t.Setenv(imapPortEnv, "143")
	t.Setenv(imapSSLEnv, "false")
	t.Setenv(imapUserEnv, "scout@example.com")
	t.Setenv(imapPasswordEnv, "app-password")
	t.Setenv(imapFolderEnv, "Idealista/Asturias")
	t.Setenv(imapQueryEnv, `FROM "idealista"`)
	t.Setenv(maxItemsEnv, "50")
	t.Setenv(logLevelEnv, "DEBUG")
	t.Setenv(telegramTokenEnv, "123:abc")
	t.Setenv(telegramChatIDEnv, "-100")
	t.Setenv(enrichmentURLEnv, "http://enrich:8080")
	t.Setenv(enrichmentKeyEnv, "key")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, "imap.example.com", cfg.Mailbox.Host)
	assert.Equal(t, 143, cfg.Mailbox.Port)
	assert.False(t, cfg.Mailbox.UseTLS)
	assert.Equal(t, "scout@example.com", cfg.Mailbox.User)
	assert.Equal(t, "app-password", cfg.Mailbox.Password)
	assert.Equal(t, "Idealista/Asturias", cfg.Mailbox.Folder)
	assert.Equal(t, 50, cfg.Mailbox.MaxItems)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "123:abc", cfg.Notifications.Telegram.BotToken)
	assert.Equal(t, "-100", cfg.Notifications.Telegram.ChatID)
	assert.Equal(t, "http://enrich:8080", cfg.Enrichment.URL)
	assert.Equal(t, "key", cfg.Enrichment.APIKey)
}

func TestLoad_BadNumericEnvIgnored(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(imapPortEnv, "imaps")
	t.Setenv(maxItemsEnv, "lots")

	cfg := Load()
	assert.Equal(t, 993, cfg.Mailbox.Port)
	assert.Equal(t, 200, cfg.Mailbox.MaxItems)
}

func TestMailboxConfig_IDPrefix(t *testing.T) {
	cfg := LoadFrom("")
	assert.Equal(t, "imap", cfg.Mailbox.IDPrefix())

	cfg.Mailbox.Backend = "mbox"
	assert.Equal(t, "mbox", cfg.Mailbox.IDPrefix())

	cfg.Mailbox.SourcePrefix = "gmail"
	assert.Equal(t, "gmail", cfg.Mailbox.IDPrefix())

	assert.Equal(t, "imap", MailboxConfig{}.IDPrefix())
}

func TestLoadFrom_UnknownTimezoneReverts(t *testing.T) {
	cfg := LoadFrom(writeConfig(t, "scheduler:\n  timezone: Mars/Olympus\n"))
	assert.Equal(t, "Europe/Madrid", cfg.Scheduler.Location().String())
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"driver":       func(c *Config) { c.Database.Driver = "mysql" },
		"empty dsn":    func(c *Config) { c.Database.DSN = "" },
		"backend":      func(c *Config) { c.Mailbox.Backend = "pop3" },
		"imap host":    func(c *Config) { c.Mailbox.Host = "" },
		"mbox path":    func(c *Config) { c.Mailbox.Backend = "mbox" },
		"port":         func(c *Config) { c.Mailbox.Port = 70000 },
		"max items":    func(c *Config) { c.Mailbox.MaxItems = 0 },
		"query":        func(c *Config) { c.Mailbox.SearchQuery = "SINCE yesterday" },
		"weights":      func(c *Config) { c.Scoring.DefaultWeights = map[string]float64{"legal_status": -1} },
		"criterion":    func(c *Config) { c.Scoring.DefaultWeights = map[string]float64{"sunshine": 1} },
		"watermark":    func(c *Config) { c.Watermark = WatermarkConfig{Backend: "file"} },
		"log format":   func(c *Config) { c.Logging.Format = "xml" },
		"enrichment":   func(c *Config) { c.Enrichment.URL = "not a url" },
		"metrics addr": func(c *Config) { c.Metrics.Listen = "metrics" },
	}

	for name, mutate := range cases {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := LoadFrom("")
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
