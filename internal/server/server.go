// Package server orchestrates all components: config, logging, AI bridge,
// COMMS publisher, message log, and the HTTP and UDP message services.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	comms "github.com/nats-io/nats.go"

	"github.com/uevarest/gateway/internal/config"
	"github.com/uevarest/gateway/internal/httpserver"
	"github.com/uevarest/gateway/internal/udpserver"
	"github.com/uevarest/gateway/pkg/aibridge"
	"github.com/uevarest/gateway/pkg/clientver"
	"github.com/uevarest/gateway/pkg/commsutil"
	"github.com/uevarest/gateway/pkg/events"
	"github.com/uevarest/gateway/pkg/msglog"
)

const logPrefix = "server:server"

// Options selects which transports to run.
type Options struct {
	HTTP bool
	UDP  bool
}

// Run starts the gateway, blocks until a shutdown signal, then cleans up.
func Run(opts Options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	logFile, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	slog.Info(fmt.Sprintf("%s - Starting %s", logPrefix, cfg.ServiceName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: AI bridge. An absent key disables /ai without failing
	// startup; a present key that fails construction is fatal.
	var ai aibridge.Client = aibridge.Unconfigured{}
	if cfg.GeminiAPIKey != "" {
		gemini, err := aibridge.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("%s - failed to create AI bridge: %w", logPrefix, err)
		}
		ai = gemini
	} else {
		slog.Info(fmt.Sprintf("%s - GEMINI_API_KEY not set, /ai routes disabled", logPrefix))
	}

	// Step 2: COMMS publisher (optional).
	var pub events.Publisher = &events.NoOpPublisher{}
	var nc *comms.Conn
	if cfg.COMMSURL != "" {
		nc, err = commsutil.Connect(cfg.COMMSURL, cfg.ServiceName)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		}
		publisherOpts := &events.CommsPublisherOpts{}
		if cfg.MessageEventSubject != "" {
			publisherOpts.GlobalSubject = cfg.MessageEventSubject
		}
		pub = events.NewCommsPublisher(nc, publisherOpts)
	}

	// Step 3: message log (optional).
	var store *msglog.Store
	if cfg.DatabaseURL != "" {
		pool, err := msglog.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			if nc != nil {
				nc.Close()
			}
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		defer pool.Close()

		if cfg.RunMigrations {
			migrationSQL, err := msglog.LoadMigrationFiles(cfg.MigrationPath)
			if err != nil {
				if nc != nil {
					nc.Close()
				}
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if err := msglog.RunMigrations(ctx, pool, migrationSQL); err != nil {
				if nc != nil {
					nc.Close()
				}
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}
		store = msglog.NewStore(pool)
	}

	// Step 4: client-version gate (optional).
	gate, err := clientver.NewGate(cfg.MinClientVersion)
	if err != nil {
		if nc != nil {
			nc.Close()
		}
		return err
	}

	// Step 5: transports.
	errCh := make(chan error, 2)

	var udp *udpserver.Server
	if opts.UDP {
		udp = udpserver.New(cfg, pub, store)
		if err := udp.Listen(); err != nil {
			if nc != nil {
				nc.Close()
			}
			return err
		}
		go func() {
			// Unblock the pending receive as soon as shutdown starts.
			<-ctx.Done()
			udp.Close()
		}()
		go func() {
			errCh <- udp.Serve(ctx)
		}()
	}

	var httpSrv *httpserver.Server
	if opts.HTTP {
		httpSrv = httpserver.New(cfg, ai, pub, store, gate)
		go func() {
			errCh <- httpSrv.ListenAndServe()
		}()
	}

	slog.Info(fmt.Sprintf("%s - %s is ready", logPrefix, cfg.ServiceName))

	// Wait for shutdown signal or a fatal transport error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))
	case err := <-errCh:
		if err != nil {
			slog.Error(fmt.Sprintf("%s - transport failed: %v", logPrefix, err))
			runErr = err
		}
	}

	// Graceful shutdown.
	cancel()
	if httpSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
		}
		shutdownCancel()
	}
	if udp != nil {
		udp.Close()
	}
	if nc != nil {
		nc.Drain()
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return runErr
}

// setupLogging installs the default slog handler: text to stdout, plus the
// log file when LOG_FILE is set. The returned file is nil when logging to
// stdout only.
func setupLogging(cfg *config.Config) (*os.File, error) {
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	var file *os.File
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to open log file %s: %w", logPrefix, cfg.LogFile, err)
		}
		out = io.MultiWriter(os.Stdout, f)
		file = f
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel})))
	return file, nil
}
