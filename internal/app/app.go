// Package app wires configuration, logging and the HTTP server into the
// dupscan command.
package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/dupscan/internal/cli"
	"horse.fit/dupscan/internal/config"
	"horse.fit/dupscan/internal/detect"
	"horse.fit/dupscan/internal/httpapi"
	"horse.fit/dupscan/internal/logging"
)

// Run executes the selected subcommand and returns the process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "check":
		return runCheck(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `dupscan - duplicate detection for repository metadata

Usage:
  dupscan serve [--addr :8080] [--env .env]   start the HTTP API
  dupscan check [--env .env]                  validate configuration and backends
  dupscan help                                show this help
`)
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "Listen address")
	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if _, err := envLoader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, continuing with process environment\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service := detect.New(cfg, logger)
	server := httpapi.New(cfg, service, logger)

	logger.Info().
		Str("addr", *addr).
		Str("environment", cfg.Environment).
		Msg("starting dupscan")

	if err := server.Start(ctx, *addr); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return 1
	}
	return 0
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if _, err := envLoader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, continuing with process environment\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		return 1
	}

	fmt.Printf("configuration OK\n")
	fmt.Printf("  production repository: %s\n", cfg.RepositoryProductionURL)
	fmt.Printf("  staging repository:    %s\n", cfg.RepositoryStagingURL)
	fmt.Printf("  fingerprint threshold: %.2f (%d hashes)\n", cfg.FingerprintThreshold, cfg.FingerprintHashes)
	fmt.Printf("  embedding threshold:   %.2f (%s)\n", cfg.EmbeddingThreshold, cfg.EmbeddingModel)

	service := detect.New(cfg, logger)
	probeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := service.Backend(detect.MethodEmbedding).EnsureReady(probeCtx); err != nil {
		fmt.Printf("  embedding backend:     unavailable (%v)\n", err)
	} else {
		fmt.Printf("  embedding backend:     ready at %s\n", cfg.EmbeddingEndpoint)
	}
	return 0
}
