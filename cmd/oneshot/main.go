package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"regexp"
	"runtime"
	"syscall"
	"time"

	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/usman-khan12/one-shot/internal/config"
	"github.com/usman-khan12/one-shot/internal/database"
	"github.com/usman-khan12/one-shot/internal/events"
	"github.com/usman-khan12/one-shot/internal/lifecycle"
	"github.com/usman-khan12/one-shot/internal/metrics"
	"github.com/usman-khan12/one-shot/internal/ratelimit"
	"github.com/usman-khan12/one-shot/internal/scheduler"
	"github.com/usman-khan12/one-shot/internal/storage"
	"github.com/usman-khan12/one-shot/internal/tracing"
	"github.com/usman-khan12/one-shot/internal/transfer"
	"github.com/usman-khan12/one-shot/internal/webserver"
)

const service = "oneshot"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	binding string
	port    string
)

func main() {
	c := &cobra.Command{
		Use:     "oneshot",
		Short:   "One-shot file sharing server",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.ExactArgs(0),
	}
	c.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for oneshot",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(c.Version)
		},
	})
	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)
	c.AddCommand(sweepCmd)

	serverCmd.Flags().StringVarP(&binding, "binding", "b", "", "Server's binding (default from ONESHOT_BINDING)")
	serverCmd.Flags().StringVarP(&port, "port", "p", "", "Server's port (default from ONESHOT_PORT)")
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return database.StormInit(cfg.Database.Path)
		},
	}

	//

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return database.StormReIndex(cfg.Database.Path)
		},
	}

	//

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Purge the expired objects once",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			app, err := build(c.Context(), cfg, c.Root().Version, nil)
			if err != nil {
				return err
			}
			defer app.close()

			scheduler.Task(scheduler.Controller{
				Logger:    app.logger,
				Lifecycle: app.lifecycle,
				Limiter:   app.limiter,
				Timeout:   cfg.Scheduler.Timeout,
			})()
			return nil
		},
	}

	//

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Start server",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if binding != "" {
				cfg.HTTP.Binding = binding
			}
			if port != "" {
				cfg.HTTP.Port = port
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			app, err := build(ctx, cfg, c.Root().Version, registry)
			if err != nil {
				return err
			}
			defer app.close()

			//

			cron, err := scheduler.Start(scheduler.Controller{
				Logger:        app.logger,
				Lifecycle:     app.lifecycle,
				Limiter:       app.limiter,
				Specification: cfg.Scheduler.Specification,
				Timeout:       cfg.Scheduler.Timeout,
			})
			if err != nil {
				return err
			}
			defer func() { <-cron.Stop().Done() }()

			//

			engine := webserver.EchoEngine(webserver.Controller{
				Version: c.Root().Version,
				Logger:  app.logger,
				Transfer: transfer.New(transfer.Controller{
					Logger:    app.logger,
					Lifecycle: app.lifecycle,
					Limiter:   app.limiter,
					Metrics:   app.metrics,
				}),
				MaxSize:      cfg.MaxSizeBytes,
				Gatherer:     registry,
				MetricsToken: cfg.Metrics.Token,
			})
			engine.Server.ReadTimeout = cfg.HTTP.ReadTimeout
			engine.Server.WriteTimeout = cfg.HTTP.WriteTimeout
			webserver.PrintRoutes(engine)

			listen := fmt.Sprintf("%s:%s", cfg.HTTP.Binding, cfg.HTTP.Port)
			app.logger.Infof("Server listening on %s", listen)

			errc := make(chan error, 1)
			go func() {
				errc <- engine.Start(listen)
			}()

			select {
			case err = <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return errors.Wrap(err, "could not run server")
			case <-ctx.Done():
			}

			app.logger.Info("Shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return errors.Wrap(engine.Shutdown(sctx), "could not stop server")
		},
	}
)

// An application holds the wired components shared by the commands.
type application struct {
	logger    logger.Logger
	metrics   *metrics.Metrics
	lifecycle *lifecycle.Manager
	limiter   *ratelimit.Limiter
	closers   []func() error
}

func build(ctx context.Context, cfg *config.Config, version string, registry prometheus.Registerer) (*application, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	l := logrus.New()
	l.SetLevel(cfg.Level())
	l.SetFormatter(&logger.LogrusTextFormatter{
		DisableColors:   false,
		ForceColors:     true,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	app := &application{
		logger: logger.WrapLogrus(l),
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	app.metrics = metrics.New(registry)

	//

	shutdown, err := tracing.Init(ctx, cfg.Tracing.Tracer(service, version))
	if err != nil {
		return nil, err
	}
	app.onClose(func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(sctx)
	})

	//

	var db database.Client
	switch cfg.Database.Kind {
	case config.DatabaseMemory:
		db = database.NewMemory()
	default:
		db, err = database.StormOpen(cfg.Database.Path)
		if err != nil {
			app.close()
			return nil, errors.Wrap(err, "could not open database")
		}
	}
	app.onClose(db.Close)

	//

	backend, err := newBackend(ctx, cfg.Storage)
	if err != nil {
		app.close()
		return nil, errors.Wrap(err, "could not open storage")
	}
	app.logger.Infof("Using %s storage", backend.Name())

	//

	publisher := events.Discard()
	if cfg.Kafka.Enabled {
		publisher = events.NewKafka(cfg.Kafka.Publisher())
		app.logger.Infof("Publishing events to %s", cfg.Kafka.Topic)
	}
	app.onClose(publisher.Close)

	//

	app.lifecycle = lifecycle.New(lifecycle.Controller{
		Logger:             app.logger,
		Database:           db,
		Storage:            backend,
		Publisher:          publisher,
		Metrics:            app.metrics,
		MaxSize:            cfg.MaxSizeBytes,
		TTL:                cfg.Lifecycle.TTL,
		AllowedTypes:       cfg.Lifecycle.AllowedTypes,
		BackendTimeout:     cfg.Lifecycle.BackendTimeout,
		PublishTimeout:     cfg.Lifecycle.PublishTimeout,
		TombstoneRetention: cfg.Lifecycle.TombstoneRetention,
	})
	app.limiter = ratelimit.New(ratelimit.Controller{
		Logger: app.logger,
		Store:  db,
		Window: cfg.RateLimit.Window,
		Max:    cfg.RateLimit.Max,
	})

	return app, nil
}

func newBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), nil
	case config.BackendS3:
		return storage.NewS3(ctx, cfg.S3())
	case config.BackendSwift:
		return storage.NewSwift(ctx, cfg.Swift())
	default:
		return storage.NewFileSystem(cfg.Path), nil
	}
}

func (a *application) onClose(f func() error) {
	a.closers = append(a.closers, f)
}

// close releases the components in reverse order.
func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error(err)
		}
	}
	a.closers = nil
}
