package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/MrEthical07/accountcore"
	"go.uber.org/zap"
)

// duration decodes TOML strings such as "24h" or "30m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type fileConfig struct {
	Environment string `toml:"environment"`

	Database struct {
		DSN string `toml:"dsn"`
	} `toml:"database"`

	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
	} `toml:"redis"`

	Tokens struct {
		SessionSecret string   `toml:"session_secret"`
		ResetSecret   string   `toml:"reset_secret"`
		SessionTTL    duration `toml:"session_ttl"`
		ResetTTL      duration `toml:"reset_ttl"`
		Issuer        string   `toml:"issuer"`
	} `toml:"tokens"`

	Account struct {
		SuperuserID string `toml:"superuser_id"`
	} `toml:"account"`
}

// loadConfig reads path when it is non-empty, then applies ACCOUNTCTL_*
// overrides from getenv.
func loadConfig(path string, getenv func(string) string) (fileConfig, error) {
	var cfg fileConfig
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return fileConfig{}, fmt.Errorf("failed to decode TOML file: %w", err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnvOverrides(getenv); err != nil {
		return fileConfig{}, err
	}
	return cfg, nil
}

// applyEnvOverrides applies:
//   - ACCOUNTCTL_DATABASE_DSN
//   - ACCOUNTCTL_REDIS_ADDR, ACCOUNTCTL_REDIS_PASSWORD, ACCOUNTCTL_REDIS_DB
//   - ACCOUNTCTL_SESSION_SECRET, ACCOUNTCTL_RESET_SECRET
//   - ACCOUNTCTL_ENVIRONMENT
func (c *fileConfig) applyEnvOverrides(getenv func(string) string) error {
	if v := getenv("ACCOUNTCTL_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := getenv("ACCOUNTCTL_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("ACCOUNTCTL_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("ACCOUNTCTL_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACCOUNTCTL_REDIS_DB: %w", err)
		}
		c.Redis.DB = db
	}
	if v := getenv("ACCOUNTCTL_SESSION_SECRET"); v != "" {
		c.Tokens.SessionSecret = v
	}
	if v := getenv("ACCOUNTCTL_RESET_SECRET"); v != "" {
		c.Tokens.ResetSecret = v
	}
	if v := getenv("ACCOUNTCTL_ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	return nil
}

func (c fileConfig) requireDSN() error {
	if c.Database.DSN == "" {
		return errors.New("database dsn is required (database.dsn or ACCOUNTCTL_DATABASE_DSN)")
	}
	return nil
}

// engineConfig maps the file onto accountcore defaults.
func (c fileConfig) engineConfig() (accountcore.Config, error) {
	cfg := accountcore.DefaultConfig()
	cfg.Tokens.SessionSecret = []byte(c.Tokens.SessionSecret)
	cfg.Tokens.ResetSecret = []byte(c.Tokens.ResetSecret)
	if c.Tokens.SessionTTL.Duration > 0 {
		cfg.Tokens.SessionTTL = c.Tokens.SessionTTL.Duration
	}
	if c.Tokens.ResetTTL.Duration > 0 {
		cfg.Tokens.ResetTTL = c.Tokens.ResetTTL.Duration
	}
	if c.Tokens.Issuer != "" {
		cfg.Tokens.Issuer = c.Tokens.Issuer
	}
	if c.Account.SuperuserID != "" {
		cfg.Account.SuperuserID = c.Account.SuperuserID
	}
	cfg.Notifications.Async = false

	if err := cfg.Validate(); err != nil {
		return accountcore.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c fileConfig) newLogger() (*zap.Logger, error) {
	if c.Environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
