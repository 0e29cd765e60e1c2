package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"grimm.is/rtmirror/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate validates the entire configuration.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, ValidationError{Field: "log_level", Message: err.Error()})
	}
	if d, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		errs = append(errs, ValidationError{Field: "shutdown_timeout", Message: fmt.Sprintf("invalid duration: %s", c.ShutdownTimeout)})
	} else if d <= 0 {
		errs = append(errs, ValidationError{Field: "shutdown_timeout", Message: "must be positive"})
	}
	if strings.ContainsRune(c.Netns, '/') {
		errs = append(errs, ValidationError{Field: "netns", Message: "must be a namespace name, not a path"})
	}

	if c.Metrics != nil && c.Metrics.Enabled {
		errs = append(errs, validateListen("metrics.listen", c.Metrics.Listen)...)
	}
	if c.API != nil && c.API.Enabled {
		errs = append(errs, validateListen("api.listen", c.API.Listen)...)
	}
	if c.Metrics != nil && c.API != nil && c.Metrics.Enabled && c.API.Enabled && c.Metrics.Listen == c.API.Listen {
		errs = append(errs, ValidationError{Field: "api.listen", Message: "conflicts with metrics.listen"})
	}

	errs = append(errs, c.validateHistory()...)
	errs = append(errs, c.validateSyslog()...)

	return errs
}

func validateListen(field, addr string) ValidationErrors {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("invalid address %q: %v", addr, err)}}
	}
	if host != "" && net.ParseIP(host) == nil && host != "localhost" {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("invalid host: %s", host)}}
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("invalid port: %s", port)}}
	}
	return nil
}

func (c *Config) validateHistory() ValidationErrors {
	h := c.History
	if h == nil || !h.Enabled {
		return nil
	}
	var errs ValidationErrors
	if h.Path == "" {
		errs = append(errs, ValidationError{Field: "history.path", Message: "required"})
	}
	for _, f := range []struct{ field, v string }{
		{"history.flush_interval", h.FlushInterval},
		{"history.retention", h.Retention},
	} {
		field, v := f.field, f.v
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid duration: %s", v)})
		} else if d <= 0 {
			errs = append(errs, ValidationError{Field: field, Message: "must be positive"})
		}
	}
	return errs
}

func (c *Config) validateSyslog() ValidationErrors {
	s := c.Syslog
	if s == nil || !s.Enabled {
		return nil
	}
	var errs ValidationErrors
	if s.Host == "" {
		errs = append(errs, ValidationError{Field: "syslog.host", Message: "required when syslog is enabled"})
	}
	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, ValidationError{Field: "syslog.port", Message: fmt.Sprintf("invalid port: %d", s.Port)})
	}
	switch s.Protocol {
	case "", "udp", "tcp":
	default:
		errs = append(errs, ValidationError{Field: "syslog.protocol", Message: fmt.Sprintf("must be udp or tcp, got %s", s.Protocol)})
	}
	if s.Facility < 0 || s.Facility > 23 {
		errs = append(errs, ValidationError{Field: "syslog.facility", Message: fmt.Sprintf("invalid facility: %d", s.Facility)})
	}
	return errs
}
