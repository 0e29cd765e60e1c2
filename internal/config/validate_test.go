package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{"default is valid", func(*Config) {}, nil},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, []string{"log_level"}},
		{"bad shutdown timeout", func(c *Config) { c.ShutdownTimeout = "soon" }, []string{"shutdown_timeout"}},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = "0s" }, []string{"shutdown_timeout"}},
		{"netns path", func(c *Config) { c.Netns = "/var/run/netns/blue" }, []string{"netns"}},
		{"bad metrics listen", func(c *Config) { c.Metrics.Listen = "nohost" }, []string{"metrics.listen"}},
		{"bad api port", func(c *Config) { c.API.Listen = "127.0.0.1:99999" }, []string{"api.listen"}},
		{"disabled endpoint skips listen check", func(c *Config) {
			c.API.Enabled = false
			c.API.Listen = "garbage"
		}, nil},
		{"listen conflict", func(c *Config) { c.API.Listen = c.Metrics.Listen }, []string{"api.listen"}},
		{"history durations", func(c *Config) {
			c.History.Enabled = true
			c.History.FlushInterval = "often"
			c.History.Retention = "-1h"
		}, []string{"history.flush_interval", "history.retention"}},
		{"syslog without host", func(c *Config) { c.Syslog.Enabled = true }, []string{"syslog.host"}},
		{"syslog protocol", func(c *Config) {
			c.Syslog = &SyslogConfig{Enabled: true, Host: "10.0.0.1", Protocol: "sctp"}
		}, []string{"syslog.protocol"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
			assert.Equal(t, len(tt.fields) > 0, errs.HasErrors())
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Message: "one"},
		{Field: "b", Message: "two"},
	}
	assert.Equal(t, "a: one; b: two", errs.Error())
	assert.Equal(t, "", ValidationErrors(nil).Error())
}
