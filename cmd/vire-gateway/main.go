package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bobmcallan/vire-gateway/internal/app"
	"github.com/bobmcallan/vire-gateway/internal/common"
	"github.com/bobmcallan/vire-gateway/internal/config"
	"github.com/bobmcallan/vire-gateway/internal/server"
)

// configPaths is a custom flag type that allows multiple -config flags.
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	serverPort  = flag.Int("port", 0, "Server port (overrides config)")
	serverHost  = flag.String("host", "", "Server host (overrides config)")
	transportF  = flag.String("transport", "", "HTTP transport: http (streamable) or sse (overrides config)")
	stdio       = flag.Bool("stdio", false, "Serve over stdin/stdout instead of HTTP")
	showVersion = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("vire-gateway version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified.
	// Binary-relative paths are tried first so the config is found even when
	// the working directory differs from the binary location.
	if len(configFiles) == 0 {
		for _, path := range configSearchPaths() {
			if _, err := os.Stat(path); err == nil {
				configFiles = append(configFiles, path)
				break
			}
		}
	}

	cfg, err := config.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	config.ApplyFlagOverrides(cfg, *serverPort, *serverHost, *transportF)

	if issues := cfg.Validate(); len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Configuration error — mandatory fields are missing or invalid:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "  - %s\n", issue)
		}
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Values can be set via TOML file, VIRE_GATEWAY_* environment variables, or CLI flags.")
		os.Exit(1)
	}

	logger := common.NewLoggerFromConfig(cfg.Logging)

	logger.Info().
		Str("version", common.GetVersion()).
		Str("transport", cfg.Server.Transport).
		Str("config_files", fmt.Sprintf("%v", configFiles)).
		Msg("configuration loaded")

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error().Str("error", err.Error()).Msg("failed to initialize gateway")
		os.Exit(1)
	}
	defer application.Close()

	if *stdio {
		runPipe(application, logger)
		return
	}

	runHTTP(cfg, application, logger)
}

// runPipe serves the pipe transport until stdin EOF or a signal.
func runPipe(application *app.App, logger *common.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Pipe().Serve(ctx); err != nil && err != context.Canceled {
		logger.Error().Str("error", err.Error()).Msg("pipe transport failed")
		os.Exit(1)
	}
}

// runHTTP serves the HTTP transports until a shutdown signal arrives.
func runHTTP(cfg *config.Config, application *app.App, logger *common.Logger) {
	srv := server.New(cfg, application.HTTPTransport(), logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Error().Str("error", err.Error()).Msg("server failed")
			os.Exit(1)
		}
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Str("error", err.Error()).Msg("graceful shutdown failed")
			os.Exit(1)
		}
	}
}

// configSearchPaths returns candidate config locations in priority order.
func configSearchPaths() []string {
	paths := []string{}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(dir, "vire-gateway.toml"),
			filepath.Join(dir, "config", "vire-gateway.toml"),
		)
	}
	return append(paths,
		"vire-gateway.toml",
		filepath.Join("config", "vire-gateway.toml"),
	)
}
