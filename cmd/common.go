package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"

	"grimm.is/rtmirror/internal/brand"
	"grimm.is/rtmirror/internal/config"
	"grimm.is/rtmirror/internal/events"
	"grimm.is/rtmirror/internal/logging"
	"grimm.is/rtmirror/internal/network"
	"grimm.is/rtmirror/internal/rtconf"
)

// Stdout and Stderr are swapped out by tests.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// commonFlags are shared by every subcommand that builds a mirror.
type commonFlags struct {
	configFile string
	netns      string
	logLevel   string
}

func (c *commonFlags) register(flags *flag.FlagSet) {
	flags.StringVar(&c.configFile, "config", brand.DefaultConfigPath(), "Configuration file")
	flags.StringVar(&c.configFile, "c", brand.DefaultConfigPath(), "Configuration file (short)")
	flags.StringVar(&c.netns, "netns", "", "Named network namespace to mirror (overrides config)")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// load reads the configuration and applies flag overrides. A missing file
// at the default path is not an error; defaults are used instead.
func (c *commonFlags) load(flags *flag.FlagSet) (*config.Config, error) {
	explicit := false
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "config" || f.Name == "c" {
			explicit = true
		}
	})

	cfg, err := config.LoadFile(c.configFile)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
	default:
		return nil, err
	}

	if c.netns != "" {
		cfg.Netns = c.netns
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", errs)
	}
	return cfg, nil
}

// setupLogging builds the process logger from cfg and installs it as the
// default. The returned func closes the syslog connection, if any.
func setupLogging(cfg *config.Config, out io.Writer) (*logging.Logger, func(), error) {
	cleanup := func() {}
	if sc := cfg.LoggingSyslog(); sc.Enabled {
		w, err := logging.NewSyslogWriter(sc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to syslog: %w", err)
		}
		out = logging.MultiWriter(out, w)
		cleanup = func() { w.Close() }
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Level(),
		Output: out,
		JSON:   cfg.LogJSON,
	})
	logging.SetDefault(logger)
	return logger, cleanup, nil
}

// createMirror opens the netlink transport for cfg and starts a mirror.
func createMirror(cfg *config.Config, logger *logging.Logger, hub *events.Hub) (*rtconf.Mirror, error) {
	opener := network.Opener(network.Options{
		Netns:  cfg.Netns,
		Logger: logger.WithComponent("network"),
	})
	opts := []rtconf.Option{rtconf.WithLogger(logger.WithComponent("rtconf"))}
	if hub != nil {
		opts = append(opts, rtconf.WithEvents(hub))
	}
	return rtconf.Create(opener, opts...)
}
