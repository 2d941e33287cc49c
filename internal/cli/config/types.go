// Package config provides configuration management for the leapquery CLI.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	Endpoint string        `koanf:"endpoint"`
	Mode     string        `koanf:"mode"`
	Timeout  time.Duration `koanf:"timeout"`
	Verbose  bool          `koanf:"verbose"`
	Output   string        `koanf:"output"`
	PageSize int           `koanf:"page_size"`
	Format   FormatConfig  `koanf:"format"`
	History  HistoryConfig `koanf:"history"`
	Serve    ServeConfig   `koanf:"serve"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
}

// FormatConfig holds formatter settings.
type FormatConfig struct {
	// MaxWidth is the wrap width. Zero defers to the width saved in the
	// state database, then to the formatter default.
	MaxWidth int `koanf:"max_width"`
}

// HistoryConfig holds statement history settings.
type HistoryConfig struct {
	Path       string `koanf:"path"`
	MaxEntries int    `koanf:"max_entries"`
}

// ServeConfig holds configuration for the local query endpoint.
type ServeConfig struct {
	Addr    string        `koanf:"addr"`
	Driver  string        `koanf:"driver"`
	DSN     string        `koanf:"dsn"`
	MaxRows int           `koanf:"max_rows"`
	Timeout time.Duration `koanf:"timeout"`
}

// Default configuration values.
const (
	DefaultMode        = "get"
	DefaultTimeout     = 30 * time.Second
	DefaultOutput      = "table"
	DefaultPageSize    = 25
	DefaultHistoryFile = "~/.leapquery/state.db"
	DefaultMaxEntries  = 640
	DefaultServeAddr   = "127.0.0.1:8080"
	DefaultServeDriver = "sqlite"
	DefaultServeRows   = 10000
	EnvPrefix          = "LEAPQUERY_"
)

// configNames are the config file names searched for, in order.
var configNames = []string{"leapquery.yaml", "leapquery.yml"}
