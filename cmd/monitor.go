package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"grimm.is/rtmirror/internal/api"
	"grimm.is/rtmirror/internal/clock"
	"grimm.is/rtmirror/internal/config"
	"grimm.is/rtmirror/internal/events"
	"grimm.is/rtmirror/internal/health"
	"grimm.is/rtmirror/internal/host"
	"grimm.is/rtmirror/internal/logging"
	"grimm.is/rtmirror/internal/metrics"
	"grimm.is/rtmirror/internal/network"
	"grimm.is/rtmirror/internal/rtconf"
)

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// RunMonitor runs the mirror in the foreground until SIGINT or SIGTERM,
// serving the API and metrics endpoints configured in the config file.
func RunMonitor(args []string) error {
	flags := flag.NewFlagSet("monitor", flag.ExitOnError)
	var common commonFlags
	common.register(flags)
	flags.Parse(args)

	cfg, err := common.load(flags)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogging(cfg, Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return monitor(ctx, cfg, logger)
}

func monitor(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	log := logger.WithComponent("monitor")
	hub := events.NewHub()

	if warnings, err := host.CheckPortConflicts(cfg); err != nil {
		log.Debug("port conflict scan failed", "error", err)
	} else {
		for _, w := range warnings {
			log.Warn(w)
		}
	}

	checker := health.NewChecker(5*time.Second, clock.Real)
	checker.Register("events", health.EventsCheck(hub))
	checker.Register("interfaces", health.InterfacesCheck(cfg.Netns))
	checker.Register("memory", health.MemoryCheck)

	var churn api.ChurnSource
	if cfg.History.Enabled {
		agg, stopHistory, err := startHistory(cfg, hub)
		if err != nil {
			return err
		}
		defer stopHistory()
		churn = agg
		checker.Register("history", health.HistoryCheck(agg))
	}

	mirror, err := createMirror(cfg, logger, hub)
	if err != nil {
		return fmt.Errorf("failed to start mirror: %w", err)
	}
	checker.Register("mirror", health.MirrorCheck(mirror))

	var names api.NameResolver
	if r, err := network.NewLinkResolver(cfg.Netns); err != nil {
		log.Warn("interface names unavailable", "error", err)
	} else {
		defer r.Close()
		names = r
	}

	g, gctx := errgroup.WithContext(ctx)
	var servers []shutdowner

	if cfg.API.Enabled {
		srv, err := api.NewServer(api.ServerOptions{
			Mirror: mirror,
			Hub:    hub,
			Churn:  churn,
			Names:  names,
			Health: checker,
			Logger: logger.WithComponent("api"),
		})
		if err != nil {
			mirror.Destroy()
			return err
		}
		ln, err := net.Listen("tcp", cfg.API.Listen)
		if err != nil {
			mirror.Destroy()
			return fmt.Errorf("failed to listen on %s: %w", cfg.API.Listen, err)
		}
		g.Go(func() error { return srv.Serve(ln) })
		servers = append(servers, srv)
	}

	if cfg.Metrics.Enabled {
		ln, err := net.Listen("tcp", cfg.Metrics.Listen)
		if err != nil {
			shutdownAll(context.Background(), servers)
			mirror.Destroy()
			return fmt.Errorf("failed to listen on %s: %w", cfg.Metrics.Listen, err)
		}
		msrv := newMetricsServer()
		log.Info("metrics listening", "addr", ln.Addr().String())
		g.Go(func() error {
			if err := msrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		servers = append(servers, msrv)
	}

	g.Go(func() error {
		if err := mirror.WaitSynced(gctx); err != nil {
			return nil
		}
		st := mirror.Stats()
		log.Info("initial sync complete",
			"routes", st.Routes,
			"addresses", st.Addresses,
			"dump_errors", st.DumpErrors,
		)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			log.Info("Terminate")
		}
		return shutdown(cfg.ShutdownGrace(), mirror, servers)
	})

	return g.Wait()
}

// shutdown stops the servers and then destroys the mirror. It gives up
// after grace so a wedged transport cannot hold the process.
func shutdown(grace time.Duration, mirror *rtconf.Mirror, servers []shutdowner) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := shutdownAll(ctx, servers)
		done <- errors.Join(err, mirror.Destroy())
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown did not finish within %s", grace)
	}
}

func shutdownAll(ctx context.Context, servers []shutdowner) error {
	var errs []error
	for _, s := range servers {
		errs = append(errs, s.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func newMetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	return &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// startHistory opens the churn database and starts recording hub events.
func startHistory(cfg *config.Config, hub *events.Hub) (*events.Aggregator, func(), error) {
	flush, retention, err := cfg.HistoryIntervals()
	if err != nil {
		return nil, nil, err
	}
	db, err := events.OpenDB(cfg.History.Path)
	if err != nil {
		return nil, nil, err
	}
	agg, err := events.NewAggregator(db, hub, clock.Real)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize history: %w", err)
	}

	acfg := events.DefaultAggregatorConfig()
	acfg.FlushInterval = flush
	acfg.HourlyRetention = retention
	agg.Start(acfg)

	return agg, func() {
		agg.Stop()
		db.Close()
	}, nil
}
