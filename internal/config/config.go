package config

import (
	"fmt"
	"time"

	"grimm.is/rtmirror/internal/logging"
)

// CurrentSchemaVersion defines the current schema version of the configuration.
const CurrentSchemaVersion = "1.0"

// Default listen addresses.
const (
	DefaultMetricsListen = "127.0.0.1:9464"
	DefaultAPIListen     = "127.0.0.1:9465"
)

// Config is the top-level structure for the rtmirror configuration.
type Config struct {
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty"`

	LogLevel string `hcl:"log_level,optional" json:"log_level"`
	LogJSON  bool   `hcl:"log_json,optional" json:"log_json"`

	// Named network namespace (as under /var/run/netns); empty mirrors the
	// namespace rtmirror runs in.
	Netns string `hcl:"netns,optional" json:"netns,omitempty"`

	// Grace period between SIGINT/SIGTERM and forced exit.
	ShutdownTimeout string `hcl:"shutdown_timeout,optional" json:"shutdown_timeout"`

	Metrics *MetricsConfig `hcl:"metrics,block" json:"metrics,omitempty"`
	API     *APIConfig     `hcl:"api,block" json:"api,omitempty"`
	History *HistoryConfig `hcl:"history,block" json:"history,omitempty"`
	Syslog  *SyslogConfig  `hcl:"syslog,block" json:"syslog,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `hcl:"enabled,optional" json:"enabled"`
	Listen  string `hcl:"listen,optional" json:"listen,omitempty"`
}

// APIConfig controls the read-only HTTP API.
type APIConfig struct {
	Enabled bool   `hcl:"enabled,optional" json:"enabled"`
	Listen  string `hcl:"listen,optional" json:"listen,omitempty"`
}

// HistoryConfig controls the SQLite churn history.
type HistoryConfig struct {
	Enabled       bool   `hcl:"enabled,optional" json:"enabled"`
	Path          string `hcl:"path,optional" json:"path,omitempty"` // ":memory:" keeps it in-process
	FlushInterval string `hcl:"flush_interval,optional" json:"flush_interval,omitempty"`
	Retention     string `hcl:"retention,optional" json:"retention,omitempty"` // hourly bucket retention
}

// SyslogConfig forwards logs to a remote syslog server.
type SyslogConfig struct {
	Enabled  bool   `hcl:"enabled,optional" json:"enabled"`
	Host     string `hcl:"host,optional" json:"host,omitempty"`
	Port     int    `hcl:"port,optional" json:"port,omitempty"`
	Protocol string `hcl:"protocol,optional" json:"protocol,omitempty"`
	Tag      string `hcl:"tag,optional" json:"tag,omitempty"`
	Facility int    `hcl:"facility,optional" json:"facility,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills unset fields. An absent metrics or api block means
// enabled on the default address; an absent history or syslog block means
// disabled. A present block is taken as written.
func (c *Config) applyDefaults() {
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "1s"
	}
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{Enabled: true}
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = DefaultMetricsListen
	}
	if c.API == nil {
		c.API = &APIConfig{Enabled: true}
	}
	if c.API.Listen == "" {
		c.API.Listen = DefaultAPIListen
	}
	if c.History == nil {
		c.History = &HistoryConfig{}
	}
	if c.History.Path == "" {
		c.History.Path = ":memory:"
	}
	if c.History.FlushInterval == "" {
		c.History.FlushInterval = "10s"
	}
	if c.History.Retention == "" {
		c.History.Retention = "720h"
	}
	if c.Syslog == nil {
		c.Syslog = &SyslogConfig{}
	}
}

// Level returns the parsed log level.
func (c *Config) Level() logging.Level {
	lvl, _ := logging.ParseLevel(c.LogLevel)
	return lvl
}

// ShutdownGrace returns the parsed shutdown timeout.
func (c *Config) ShutdownGrace() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// LoggingSyslog converts the syslog block for the logging package.
func (c *Config) LoggingSyslog() logging.SyslogConfig {
	out := logging.DefaultSyslogConfig()
	if c.Syslog == nil {
		return out
	}
	out.Enabled = c.Syslog.Enabled
	out.Host = c.Syslog.Host
	if c.Syslog.Port != 0 {
		out.Port = c.Syslog.Port
	}
	if c.Syslog.Protocol != "" {
		out.Protocol = c.Syslog.Protocol
	}
	if c.Syslog.Tag != "" {
		out.Tag = c.Syslog.Tag
	}
	if c.Syslog.Facility != 0 {
		out.Facility = c.Syslog.Facility
	}
	return out
}

// HistoryIntervals returns the parsed flush interval and retention.
func (c *Config) HistoryIntervals() (flush, retention time.Duration, err error) {
	if flush, err = time.ParseDuration(c.History.FlushInterval); err != nil {
		return 0, 0, fmt.Errorf("history.flush_interval: %w", err)
	}
	if retention, err = time.ParseDuration(c.History.Retention); err != nil {
		return 0, 0, fmt.Errorf("history.retention: %w", err)
	}
	return flush, retention, nil
}
