// Package main is the entrypoint for the varest-gateway binary.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/uevarest/gateway/internal/config"
	"github.com/uevarest/gateway/internal/server"
	"github.com/uevarest/gateway/pkg/msglog"
)

const usage = `Usage: gateway [command]
       gateway serve            Start both transports (HTTP and UDP).
       gateway serve-http       Start the HTTP message service only.
       gateway serve-udp        Start the UDP message service only.
       gateway migrate up       Run message-log database migrations.
       gateway migrate status   Show migration status.

Commands:
  serve           (default) Start the gateway on both transports.
  serve-http      HTTP transport only.
  serve-udp       UDP transport only.
  migrate up      Run message-log migrations only.
  migrate status  Show current migration status.

Environment: HTTP_ADDR / UDP_ADDR (default 0.0.0.0:6000), GEMINI_API_KEY
(absent disables /ai), COMMS_URL (absent disables events), DATABASE_URL
(absent disables the message log; required for migrate). See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	opts := server.Options{HTTP: true, UDP: true}
	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("gateway migrate: require subcommand (up, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("gateway migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("gateway migrate status: %v", err)
			}
		default:
			log.Fatalf("gateway migrate: unknown subcommand %q (use up, status)", sub)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// both transports (explicit or default)
	case "serve-http":
		opts = server.Options{HTTP: true}
	case "serve-udp":
		opts = server.Options{UDP: true}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(opts); err != nil {
		log.Fatalf("gateway: %v", err)
	}
}

func runMigrateUp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := msglog.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrationSQL, err := msglog.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := msglog.RunMigrations(ctx, pool, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := msglog.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return msglog.MigrationStatus(ctx, pool, cfg.MigrationPath)
}
