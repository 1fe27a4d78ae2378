// Package app wires the gateway together: catalog snapshot, executor,
// dispatcher, session registry, and the selected transport.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bobmcallan/vire-gateway/internal/cache"
	"github.com/bobmcallan/vire-gateway/internal/catalog"
	"github.com/bobmcallan/vire-gateway/internal/common"
	"github.com/bobmcallan/vire-gateway/internal/config"
	"github.com/bobmcallan/vire-gateway/internal/executor"
	"github.com/bobmcallan/vire-gateway/internal/gateway"
	"github.com/bobmcallan/vire-gateway/internal/session"
	"github.com/bobmcallan/vire-gateway/internal/transport"
)

// catalogRetryDelay is the delay between catalog fetch attempts at startup.
const catalogRetryDelay = 2 * time.Second

// App holds all gateway components and dependencies.
type App struct {
	Config     *config.Config
	Logger     *common.Logger
	Registry   *session.Registry
	Dispatcher *gateway.Dispatcher
	Handler    *transport.Handler
	Catalog    []catalog.Tool
}

// New initializes the gateway with all dependencies. The catalog is
// snapshotted once here; there is no live reload.
func New(cfg *config.Config, logger *common.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: session.NewRegistry(),
	}

	if cfg.IsDevMode() {
		logger.Warn().Msg("RUNNING IN DEV MODE — verbose wire logging may include tool arguments")
	}

	tools, err := a.loadCatalog()
	if err != nil {
		return nil, err
	}

	validated := catalog.Validate(tools, logger)
	validated = catalog.FilterByContext(validated, cfg.Catalog.Context)
	a.Catalog = validated

	exec := a.buildExecutor(validated)
	a.Dispatcher = gateway.New(validated, exec, logger)
	a.Handler = transport.NewHandler(a.Dispatcher, cfg.Server.Name, common.GetVersion(), logger)

	logger.Info().
		Int("tools", len(validated)).
		Str("context", cfg.Catalog.Context).
		Msg("gateway initialized")

	return a, nil
}

// loadCatalog assembles the tool snapshot: built-in tools first, then a
// local catalog file when configured, otherwise a fetch from the backend
// with retries. Fetch failure is non-fatal — the gateway starts with the
// built-in tools only.
func (a *App) loadCatalog() ([]catalog.Tool, error) {
	tools := catalog.Builtin()

	if path := a.Config.Catalog.Path; path != "" {
		loaded, err := catalog.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog file: %w", err)
		}
		return append(tools, loaded...), nil
	}

	if a.Config.API.URL == "" {
		return tools, nil
	}

	maxAttempts := a.Config.Catalog.Retries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var fetched []catalog.Tool
	var fetchErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		fetched, fetchErr = catalog.FetchHTTP(ctx, nil, a.Config.API.URL)
		cancel()
		if fetchErr == nil {
			break
		}
		a.Logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Str("error", fetchErr.Error()).
			Str("api_url", a.Config.API.URL).
			Msg("failed to fetch tool catalog, retrying")
		if attempt < maxAttempts {
			time.Sleep(catalogRetryDelay)
		}
	}

	if fetchErr != nil {
		a.Logger.Warn().
			Str("error", fetchErr.Error()).
			Msg("catalog unavailable after retries, starting with built-in tools only")
		return tools, nil
	}

	return append(tools, fetched...), nil
}

// buildExecutor routes built-in tools in-process and, when a backend is
// configured, everything else through the proxy executor with the result
// cache attached for cacheable tools.
func (a *App) buildExecutor(tools []catalog.Tool) executor.Executor {
	router := &executor.Router{
		Builtin: executor.NewBuiltin(a.Config.Server.Name),
	}

	if a.Config.API.URL == "" {
		return router
	}

	headers := make(http.Header)
	headers.Set("X-Gateway-Name", a.Config.Server.Name)
	headers.Set("X-Gateway-Version", common.GetVersion())
	if host, err := os.Hostname(); err == nil {
		headers.Set("X-Gateway-Host", host)
	}

	proxy := executor.NewProxy(
		a.Config.API.URL,
		time.Duration(a.Config.API.TimeoutSeconds)*time.Second,
		headers,
		a.Logger,
	)

	if a.Config.Cache.Enabled {
		cacheable := make(map[string]bool)
		for _, t := range tools {
			if t.Cacheable {
				cacheable[t.Name] = true
			}
		}
		if len(cacheable) > 0 {
			results := cache.New(
				time.Duration(a.Config.Cache.TTLSeconds)*time.Second,
				a.Config.Cache.MaxEntries,
			)
			proxy = proxy.WithCache(results, cacheable)
		}
	}

	router.Backend = proxy
	return router
}

// HTTPTransport returns the transport handler selected by configuration.
func (a *App) HTTPTransport() http.Handler {
	switch a.Config.Server.Transport {
	case config.TransportSSE:
		return transport.NewSSE(a.Registry, a.Handler, a.Config.Server.Endpoint, a.Logger)
	default:
		return transport.NewStreamableHTTP(a.Registry, a.Handler, a.Logger)
	}
}

// Pipe returns the stdin/stdout transport.
func (a *App) Pipe() *transport.Pipe {
	return transport.NewPipe(os.Stdin, os.Stdout, a.Handler, a.Registry, a.Logger)
}

// Close tears down all live sessions.
func (a *App) Close() error {
	a.Registry.CloseAll()
	return nil
}
