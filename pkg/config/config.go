// Package config loads the client configuration from a YAML file plus the
// environment. A .env file is honored when present; explicit environment
// variables win over the file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config is the full client configuration.
type Config struct {
	API struct {
		BaseURL string   `yaml:"base_url"`
		Token   string   `yaml:"token"`
		Timeout Duration `yaml:"timeout"`
	} `yaml:"api"`

	Socket struct {
		URL          string   `yaml:"url"`
		ReconnectMin Duration `yaml:"reconnect_min"`
		ReconnectMax Duration `yaml:"reconnect_max"`
	} `yaml:"socket"`

	CompanyID int64 `yaml:"company_id"`

	Sync struct {
		Debounce      Duration `yaml:"debounce"`
		RecoveryDelay Duration `yaml:"recovery_delay"`
	} `yaml:"sync"`

	Resume struct {
		// Path to the SQLite resume database; empty keeps resume points in
		// memory only.
		Path string `yaml:"path"`
	} `yaml:"resume"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Group    string `yaml:"group"`
		Consumer string `yaml:"consumer"`
	} `yaml:"redis"`

	LogLevel string `yaml:"log_level"`
}

// Load reads path (when non-empty), overlays environment variables and
// applies defaults. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}
	}

	cfg.overlayEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayEnv() {
	if v := os.Getenv("DESKWIRE_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("DESKWIRE_API_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("DESKWIRE_SOCKET_URL"); v != "" {
		c.Socket.URL = v
	}
	if v := os.Getenv("DESKWIRE_COMPANY_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.CompanyID = id
		}
	}
	if v := os.Getenv("DESKWIRE_RESUME_PATH"); v != "" {
		c.Resume.Path = v
	}
	if v := os.Getenv("DESKWIRE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("DESKWIRE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.API.Timeout <= 0 {
		c.API.Timeout = Duration(30 * time.Second)
	}
	if c.Socket.ReconnectMin <= 0 {
		c.Socket.ReconnectMin = Duration(time.Second)
	}
	if c.Socket.ReconnectMax <= 0 {
		c.Socket.ReconnectMax = Duration(30 * time.Second)
	}
	if c.Sync.Debounce <= 0 {
		c.Sync.Debounce = Duration(500 * time.Millisecond)
	}
	if c.Sync.RecoveryDelay <= 0 {
		c.Sync.RecoveryDelay = Duration(time.Second)
	}
	if c.Redis.Enabled {
		if c.Redis.Group == "" {
			c.Redis.Group = "deskwire"
		}
		if c.Redis.Consumer == "" {
			c.Redis.Consumer = "deskwire-" + uuid.NewString()[:8]
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url is required (or DESKWIRE_API_URL)")
	}
	if c.CompanyID <= 0 {
		return errors.New("config: company_id is required (or DESKWIRE_COMPANY_ID)")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("config: redis.addr is required when redis is enabled")
	}
	return nil
}
