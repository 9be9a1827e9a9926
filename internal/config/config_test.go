package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DriverSQLite, cfg.DataSource.Driver)
	assert.Equal(t, 4, cfg.DataSource.MaxConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.DataSource.QueryTimeout)
	assert.Equal(t, "https://slack.com/api", cfg.Slack.BaseURL)
	assert.Equal(t, "data/compgrid.db", cfg.Database.SQLitePath)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 587, cfg.Email.Port)
	assert.Equal(t, "mandatory", cfg.Email.TLS)
}

func TestLoad_EmailEnv(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("DATA_EMAIL_USER", "reports@example.com")
	t.Setenv("DATA_EMAIL_PASSWORD", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com", cfg.Email.Host)
	assert.Equal(t, 2525, cfg.Email.Port)
	assert.Equal(t, "secret", cfg.Email.Password)
	assert.Equal(t, "reports@example.com", cfg.Email.From)
	assert.NoError(t, cfg.ValidateTarget(TargetEmail))
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
data_source:
  driver: postgres
  dsn: postgres://localhost/metrics
  query_timeout: 30s
telegram:
  chat_id: "42"
timezone: Europe/Prague
jobs:
  - definition: grids/health.yaml
    target: telegram
    cron: "0 0 7 * * *"
  - name: revenue
    definition: grids/rev.yml
    cron: "0 30 7 * * 1-5"
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("COMPGRID_MAX_CONCURRENCY", "8")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DataSource.Driver)
	assert.Equal(t, 30*time.Second, cfg.DataSource.QueryTimeout)
	assert.Equal(t, 8, cfg.DataSource.MaxConcurrency)
	assert.Equal(t, "token", cfg.Telegram.BotToken)
	assert.Equal(t, "42", cfg.Telegram.ChatID)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.Len(t, cfg.Jobs, 2)
	assert.Equal(t, "health", cfg.Jobs[0].Name)
	assert.Equal(t, TargetTelegram, cfg.Jobs[0].Target)
	assert.Equal(t, "revenue", cfg.Jobs[1].Name)
	assert.Equal(t, TargetStdout, cfg.Jobs[1].Target)

	job, ok := cfg.Job("health")
	require.True(t, ok)
	assert.Equal(t, "grids/health.yaml", job.Definition)
	_, ok = cfg.Job("nope")
	assert.False(t, ok)

	require.NoError(t, cfg.Validate())
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Prague", loc.String())
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "jobs: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.DataSource.Driver = DriverMock
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.DataSource.Driver = "oracle" }, "unknown data_source.driver"},
		{"sqlite without dsn", func(c *Config) { c.DataSource.Driver = DriverSQLite }, "data_source.dsn is required"},
		{"snowflake profile", func(c *Config) {
			c.DataSource.Driver = DriverSnowflake
			c.DataSource.SnowflakeProfile = "profile.yaml"
		}, ""},
		{"snowflake nothing", func(c *Config) { c.DataSource.Driver = DriverSnowflake }, "snowflake_profile"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad concurrency", func(c *Config) { c.DataSource.MaxConcurrency = -1 }, "max_concurrency"},
		{"job without cron", func(c *Config) {
			c.Jobs = []Job{{Name: "a", Definition: "a.yaml", Target: TargetStdout}}
		}, "cron is required"},
		{"job without definition", func(c *Config) {
			c.Jobs = []Job{{Name: "a", Cron: "* * * * * *", Target: TargetStdout}}
		}, "definition is required"},
		{"duplicate job", func(c *Config) {
			j := Job{Name: "a", Definition: "a.yaml", Cron: "* * * * * *", Target: TargetStdout}
			c.Jobs = []Job{j, j}
		}, "duplicate job name"},
		{"telegram without token", func(c *Config) {
			c.Jobs = []Job{{Name: "a", Definition: "a.yaml", Cron: "* * * * * *", Target: TargetTelegram}}
		}, "telegram.bot_token"},
		{"slack without token", func(c *Config) {
			c.Jobs = []Job{{Name: "a", Definition: "a.yaml", Cron: "* * * * * *", Target: TargetSlack}}
		}, "slack.bot_token"},
		{"email without host", func(c *Config) {
			c.Jobs = []Job{{Name: "a", Definition: "a.yaml", Cron: "* * * * * *", Target: TargetEmail}}
		}, "email.host"},
		{"email without sender", func(c *Config) {
			c.Email.Host = "smtp.example.com"
			c.Jobs = []Job{{Name: "a", Definition: "a.yaml", Cron: "* * * * * *", Target: TargetEmail}}
		}, "email.from"},
		{"email bad tls", func(c *Config) {
			c.Email.Host = "smtp.example.com"
			c.Email.From = "reports@example.com"
			c.Email.TLS = "sometimes"
			c.Jobs = []Job{{Name: "a", Definition: "a.yaml", Cron: "* * * * * *", Target: TargetEmail}}
		}, "email.tls"},
		{"unknown target", func(c *Config) {
			c.Jobs = []Job{{Name: "a", Definition: "a.yaml", Cron: "* * * * * *", Target: "fax"}}
		}, "unknown target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
