package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Delivery targets.
const (
	TargetStdout   = "stdout"
	TargetTelegram = "telegram"
	TargetSlack    = "slack"
	TargetEmail    = "email"
)

// Query drivers.
const (
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverSnowflake = "snowflake"
	DriverHTTP      = "http"
	DriverMock      = "mock"
)

// Job is one scheduled grid delivery.
type Job struct {
	Name       string `yaml:"name"`
	Definition string `yaml:"definition"`
	Target     string `yaml:"target"`
	Cron       string `yaml:"cron"`
}

// Config holds all application configuration.
type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		File   string `yaml:"file"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	DataSource struct {
		Driver           string        `yaml:"driver"`
		DSN              string        `yaml:"dsn"`
		SnowflakeProfile string        `yaml:"snowflake_profile"`
		APIKey           string        `yaml:"api_key"`
		MaxConcurrency   int           `yaml:"max_concurrency"`
		QueryTimeout     time.Duration `yaml:"query_timeout"`
	} `yaml:"data_source"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Slack struct {
		BotToken string `yaml:"bot_token"`
		BaseURL  string `yaml:"base_url"`
	} `yaml:"slack"`
	Email struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		TLS      string `yaml:"tls"` // mandatory, opportunistic or none
	} `yaml:"email"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Timezone string `yaml:"timezone"`
	Proxy    string `yaml:"proxy"`
	Jobs     []Job  `yaml:"jobs"`
}

// Load reads config from a YAML file, then applies .env and environment variable overrides.
// A missing file is not an error; defaults and the environment still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("SLACK_BOT_ACCESS_TOKEN"); v != "" {
		c.Slack.BotToken = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.Email.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Email.Port = n
		}
	}
	if v := os.Getenv("DATA_EMAIL_USER"); v != "" {
		c.Email.Username = v
	}
	if v := os.Getenv("DATA_EMAIL_PASSWORD"); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		c.Email.From = v
	}
	if v := os.Getenv("COMPGRID_DB_DRIVER"); v != "" {
		c.DataSource.Driver = v
	}
	if v := os.Getenv("COMPGRID_DB_DSN"); v != "" {
		c.DataSource.DSN = v
	}
	if v := os.Getenv("COMPGRID_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("COMPGRID_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DataSource.MaxConcurrency = n
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("COMPGRID_TZ"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.DataSource.Driver == "" {
		c.DataSource.Driver = DriverSQLite
	}
	if c.DataSource.MaxConcurrency == 0 {
		c.DataSource.MaxConcurrency = 4
	}
	if c.DataSource.QueryTimeout == 0 {
		c.DataSource.QueryTimeout = 5 * time.Minute
	}
	if c.Slack.BaseURL == "" {
		c.Slack.BaseURL = "https://slack.com/api"
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
	if c.Email.TLS == "" {
		c.Email.TLS = "mandatory"
	}
	if c.Email.From == "" {
		c.Email.From = c.Email.Username
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/compgrid.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	for i := range c.Jobs {
		j := &c.Jobs[i]
		if j.Target == "" {
			j.Target = TargetStdout
		}
		if j.Name == "" {
			base := filepath.Base(j.Definition)
			j.Name = strings.TrimSuffix(base, filepath.Ext(base))
		}
	}
}

// Location returns the time zone used to pick the anchor date.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Job returns the configured job with the given name.
func (c *Config) Job(name string) (Job, bool) {
	for _, j := range c.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.DataSource.Driver {
	case DriverSQLite, DriverPostgres, DriverHTTP:
		if c.DataSource.DSN == "" {
			return fmt.Errorf("data_source.dsn is required for driver %s", c.DataSource.Driver)
		}
	case DriverSnowflake:
		if c.DataSource.DSN == "" && c.DataSource.SnowflakeProfile == "" {
			return fmt.Errorf("data_source.dsn or data_source.snowflake_profile is required for driver snowflake")
		}
	case DriverMock:
	default:
		return fmt.Errorf("unknown data_source.driver %q", c.DataSource.Driver)
	}
	if c.DataSource.MaxConcurrency < 1 {
		return fmt.Errorf("data_source.max_concurrency must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for i, j := range c.Jobs {
		if j.Definition == "" {
			return fmt.Errorf("jobs[%d].definition is required", i)
		}
		if j.Cron == "" {
			return fmt.Errorf("jobs[%d].cron is required", i)
		}
		if seen[j.Name] {
			return fmt.Errorf("jobs[%d]: duplicate job name %q", i, j.Name)
		}
		seen[j.Name] = true
		if err := c.ValidateTarget(j.Target); err != nil {
			return fmt.Errorf("jobs[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateTarget checks that target is known and its credentials are set.
func (c *Config) ValidateTarget(target string) error {
	switch target {
	case TargetStdout:
	case TargetTelegram:
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required")
		}
	case TargetSlack:
		if c.Slack.BotToken == "" {
			return fmt.Errorf("slack.bot_token is required")
		}
	case TargetEmail:
		if c.Email.Host == "" {
			return fmt.Errorf("email.host is required")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email.from or email.username is required")
		}
		switch c.Email.TLS {
		case "mandatory", "opportunistic", "none":
		default:
			return fmt.Errorf("email.tls must be mandatory, opportunistic or none, got %q", c.Email.TLS)
		}
	default:
		return fmt.Errorf("unknown target %q", target)
	}
	return nil
}
