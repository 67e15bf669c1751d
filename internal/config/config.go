package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers for the quiz library.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// CodePlaceholder is replaced by the game code in Server.JoinURL.
const CodePlaceholder = "{code}"

type Config struct {
	Server struct {
		URL     string `yaml:"url"`
		JoinURL string `yaml:"join_url"`
		Listen  string `yaml:"listen"`
	} `yaml:"server"`
	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`
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
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Transport struct {
		HandshakeTimeout string `yaml:"handshake_timeout"`
		PingInterval     string `yaml:"ping_interval"`
	} `yaml:"transport"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Default returns the settings used for anything a config file leaves out.
func Default() Config {
	var cfg Config
	cfg.Server.URL = "http://localhost:8000"
	cfg.Server.Listen = ":8000"
	cfg.Storage.Driver = DriverFile
	cfg.Storage.Path = "quizzes.json"
	cfg.Redis.TTL = "720h"
	cfg.Quiz.TTL = "10m"
	cfg.Transport.HandshakeTimeout = "10s"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file is an error unless
// optional is set.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.url %q must be an http(s) url", c.Server.URL)
	}
	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for the file driver")
		}
	case DriverMemory:
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis driver")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	for name, raw := range map[string]string{
		"redis.ttl":                   c.Redis.TTL,
		"quiz.ttl":                    c.Quiz.TTL,
		"transport.handshake_timeout": c.Transport.HandshakeTimeout,
		"transport.ping_interval":     c.Transport.PingInterval,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// JoinURL returns the link players open for gameCode.
func (c Config) JoinURL(gameCode string) string {
	tmpl := c.Server.JoinURL
	if tmpl == "" {
		tmpl = strings.TrimRight(c.Server.URL, "/") + "/?code=" + CodePlaceholder
	}
	if !strings.Contains(tmpl, CodePlaceholder) {
		return tmpl + gameCode
	}
	return strings.ReplaceAll(tmpl, CodePlaceholder, url.QueryEscape(gameCode))
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
