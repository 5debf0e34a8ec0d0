// Package config loads runtime settings for the todo command.
//
// Values are layered, later sources overriding earlier ones:
//
//  1. Defaults
//  2. A .env file in the working directory
//  3. A config file: todo.yaml, todo.yml or todo.toml (or --config)
//  4. Environment variables
//  5. CLI flags
//
// The merged result is checked against an embedded CUE schema.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Backend selects the record store.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendLocal  Backend = "local"
	BackendMongo  Backend = "mongo"
	BackendRemote Backend = "remote"
)

// Config holds every setting. Field names in files use the json/yaml/toml
// tag names.
type Config struct {
	Backend        Backend  `json:"backend" yaml:"backend" toml:"backend"`
	Addr           string   `json:"addr" yaml:"addr" toml:"addr"`
	Database       string   `json:"database" yaml:"database" toml:"database"`
	DataDir        string   `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	MongoURI       string   `json:"mongo_uri" yaml:"mongo_uri" toml:"mongo_uri"`
	MongoDatabase  string   `json:"mongo_database" yaml:"mongo_database" toml:"mongo_database"`
	APIURL         string   `json:"api_url" yaml:"api_url" toml:"api_url"`
	Timeout        string   `json:"timeout" yaml:"timeout" toml:"timeout"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	LogLevel       string   `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Backend:        BackendSQLite,
		Addr:           ":5000",
		Database:       "todos.db",
		DataDir:        ".",
		MongoDatabase:  "todo",
		APIURL:         "http://localhost:5000",
		Timeout:        "10s",
		AllowedOrigins: []string{"*"},
		LogLevel:       "info",
	}
}

// TimeoutDuration parses Timeout. Validate guarantees it parses.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate checks the config against the CUE schema and the Go-side rules
// the schema cannot express.
func (c *Config) Validate() error {
	if err := validateSchema(c); err != nil {
		return err
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("invalid config: timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid config: timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// apply copies the non-zero fields of o onto c.
func (c *Config) apply(o Config) {
	if o.Backend != "" {
		c.Backend = Backend(strings.ToLower(string(o.Backend)))
	}
	if o.Addr != "" {
		c.Addr = o.Addr
	}
	if o.Database != "" {
		c.Database = o.Database
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.MongoURI != "" {
		c.MongoURI = o.MongoURI
	}
	if o.MongoDatabase != "" {
		c.MongoDatabase = o.MongoDatabase
	}
	if o.APIURL != "" {
		c.APIURL = o.APIURL
	}
	if o.Timeout != "" {
		c.Timeout = o.Timeout
	}
	if o.AllowedOrigins != nil {
		c.AllowedOrigins = o.AllowedOrigins
	}
	if o.LogLevel != "" {
		c.LogLevel = strings.ToLower(o.LogLevel)
	}
}
