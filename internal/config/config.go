package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Admin struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"admin"`
	State struct {
		File string `yaml:"file"`
	} `yaml:"state"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		QuestionSet string `yaml:"questionSet"`
		BankTTL     string `yaml:"bankTtl"`
	} `yaml:"quiz"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Admin.Username = envOr("ADMIN_USERNAME", "admin")
	cfg.Admin.Password = envOr("ADMIN_PASSWORD", "1234")
	cfg.State.File = "data/quiz_state.json"
	return cfg
}

// Load reads YAML config from path, falling back to defaults for fields the
// file leaves empty.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Admin.Username == "" {
		cfg.Admin.Username = envOr("ADMIN_USERNAME", "admin")
	}
	if cfg.Admin.Password == "" {
		cfg.Admin.Password = envOr("ADMIN_PASSWORD", "1234")
	}
	if cfg.State.File == "" {
		cfg.State.File = "data/quiz_state.json"
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
