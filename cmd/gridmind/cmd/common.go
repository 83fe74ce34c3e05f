package cmd

import (
	"fmt"
	"time"

	"github.com/gridmind/gridmind/internal/config"
	"github.com/gridmind/gridmind/internal/core"
	"github.com/gridmind/gridmind/internal/dispatch"
	"github.com/gridmind/gridmind/internal/engine"
	"github.com/gridmind/gridmind/internal/events"
	"github.com/gridmind/gridmind/internal/logging"
	"github.com/gridmind/gridmind/internal/search"
	"github.com/gridmind/gridmind/internal/sheet"
	"github.com/gridmind/gridmind/internal/template"
)

// stack bundles the wired engine components shared by serve and process.
type stack struct {
	service  *engine.Service
	registry *template.Registry
	bus      *events.Bus
	watcher  *template.Watcher
}

// close releases the stack in reverse wiring order.
func (s *stack) close() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	_ = s.service.Close()
	s.bus.Close()
}

// buildStack wires the engine from configuration: template registry,
// completion dispatcher, search augmenter, store, and sheet service.
func buildStack(cfg *config.Config, logger *logging.Logger) (*stack, error) {
	registry := template.NewRegistry()
	bus := events.NewBus(cfg.Events.BufferSize)

	var watcher *template.Watcher
	if cfg.Templates.Dir != "" {
		watcher = template.NewWatcher(registry, cfg.Templates.Dir, logger, func(count int) {
			bus.Publish(events.NewTemplatesReloadedEvent(count))
		})
		if cfg.Templates.Watch {
			if err := watcher.Start(); err != nil {
				return nil, fmt.Errorf("watching template pack: %w", err)
			}
		} else {
			contracts, err := template.LoadPackDir(cfg.Templates.Dir)
			if err != nil {
				return nil, fmt.Errorf("loading template pack: %w", err)
			}
			for _, c := range contracts {
				if err := registry.Register(c); err != nil {
					return nil, fmt.Errorf("registering pack template: %w", err)
				}
			}
			watcher = nil
		}
	}

	callTimeout, err := time.ParseDuration(cfg.Dispatch.CallTimeout)
	if err != nil {
		return nil, fmt.Errorf("parsing dispatch.call_timeout: %w", err)
	}

	retry := dispatch.DefaultRetryPolicy()
	retry.MaxRetries = cfg.Dispatch.MaxRetries

	var limiter *dispatch.RateLimiter
	if cfg.Dispatch.RateLimit > 0 {
		rate := float64(cfg.Dispatch.RateLimit)
		limiter = dispatch.NewRateLimiter(rate, rate)
	}

	client := dispatch.NewOpenAIClient(cfg.Completion.APIKey,
		dispatch.WithOpenAIBaseURL(cfg.Completion.BaseURL),
		dispatch.WithOpenAIModel(cfg.Completion.Model),
	)
	dispatcher := dispatch.NewDispatcher(client, dispatch.Config{
		Concurrency: cfg.Dispatch.Concurrency,
		CallTimeout: callTimeout,
		Retry:       retry,
		RateLimit:   limiter,
	}, logger)

	var searchClient core.SearchClient
	searchTimeout := 10 * time.Second
	if cfg.Search.Enabled {
		searchClient = search.NewSerperClient(cfg.Search.APIKey,
			search.WithBaseURL(cfg.Search.BaseURL))
		if d, err := time.ParseDuration(cfg.Search.Timeout); err == nil {
			searchTimeout = d
		}
	}
	augmenter := search.NewAugmenter(searchClient, searchTimeout, cfg.Search.MaxResults, logger)

	var store core.SheetStore
	if cfg.Store.Path != "" {
		store, err = sheet.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sheet store: %w", err)
		}
	} else {
		store = sheet.NewMemoryStore()
	}

	service := engine.NewService(store, registry, dispatcher, augmenter, bus, logger)

	return &stack{
		service:  service,
		registry: registry,
		bus:      bus,
		watcher:  watcher,
	}, nil
}
