// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/audio/stream"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/catalog/saavn"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/eventbus"
	focusdbus "github.com/tejashwikalptaru/saavntune/internal/adapter/focus/dbus"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/repository/file"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/repository/gcs"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/repository/memory"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/session/httpctl"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/session/mpris"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/session/notify"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/session/tray"
	"github.com/tejashwikalptaru/saavntune/internal/config"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
	"github.com/tejashwikalptaru/saavntune/internal/service"
)

// AppName is the display name used by desktop surfaces.
const AppName = "SaavnTune"

// mprisSuffix completes the MPRIS bus name org.mpris.MediaPlayer2.<suffix>.
const mprisSuffix = "saavntune"

// Options adjusts how the application is assembled.
// Zero values select the production components implied by the config.
type Options struct {
	// Headless disables the tray even when it is configured
	Headless bool

	// FyneApp injects a fyne app (tests use fyne.io/fyne/v2/test)
	FyneApp fyne.App

	// Catalog, Engine, Store and Focus replace the configured adapters
	Catalog ports.Catalog
	Engine  ports.PlaybackEngine
	Store   ports.QueueStore
	Focus   ports.FocusArbiter

	// Bridges replaces the configured session bridges when non-nil
	Bridges []ports.SessionBridge
}

// Application is the root application structure that holds all dependencies.
// It follows the Dependency Injection pattern with constructor-based injection.
type Application struct {
	// Core dependencies
	cfg     config.Config
	logger  *slog.Logger
	fyneApp fyne.App

	// Infrastructure
	catalog ports.Catalog
	bus     *eventbus.SyncEventBus
	engine  ports.PlaybackEngine
	store   ports.QueueStore
	focus   ports.FocusArbiter

	// Services
	resolver   *service.Resolver
	controller *service.Controller

	// Session bridges
	bridges []ports.SessionBridge
	tray    *tray.Bridge

	mu       sync.Mutex
	started  bool
	shutdown bool
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewResolver builds the catalog client and resolver only. Commands that
// browse the catalog without playing use it instead of a full Application.
func NewResolver(cfg config.Config, logger *slog.Logger) *service.Resolver {
	return service.NewResolver(newCatalog(cfg, logger), resolverConfig(cfg), logger)
}

func newCatalog(cfg config.Config, logger *slog.Logger) ports.Catalog {
	return saavn.NewClient(logger, cfg.Catalog.BaseURL, cfg.Catalog.Timeout,
		saavn.WithUserAgent(cfg.Catalog.UserAgent))
}

func resolverConfig(cfg config.Config) service.ResolverConfig {
	return service.ResolverConfig{
		SearchLimit:       cfg.Resolver.SearchLimit,
		ArtistSearchLimit: cfg.Resolver.ArtistSearchLimit,
		Concurrency:       cfg.Resolver.Concurrency,
		StreamQualities:   cfg.Resolver.StreamQualities,
		ImageQualities:    cfg.Resolver.ImageQualities,
		SuggestionSeed:    cfg.Resolver.SuggestionSeed,
	}
}

// New creates an application with all dependencies wired. Nothing runs until Start.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*Application, error) {
	a := &Application{
		cfg:    cfg,
		logger: logger,
	}

	logger.Info("initializing application",
		slog.String("app_id", config.AppID),
		slog.String("store", cfg.Store.Backend),
		slog.Bool("dry_run", cfg.Player.DryRun))

	needsFyne := cfg.Store.Backend == config.StorePreferences && opts.Store == nil ||
		cfg.Bridge.Tray && !opts.Headless && opts.Bridges == nil
	if opts.FyneApp != nil {
		a.fyneApp = opts.FyneApp
	} else if needsFyne {
		a.fyneApp = fyneapp.NewWithID(config.AppID)
	}

	// Event bus
	a.bus = eventbus.NewSyncEventBus()
	a.bus.SetLogger(logger.With(slog.String("component", "eventbus")))

	// Catalog and resolver
	a.catalog = opts.Catalog
	if a.catalog == nil {
		a.catalog = newCatalog(cfg, logger)
	}
	a.resolver = service.NewResolver(a.catalog, resolverConfig(cfg), logger)

	// Queue store
	a.store = opts.Store
	if a.store == nil {
		store, err := NewQueueStore(ctx, cfg, a.fyneApp, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open queue store: %w", err)
		}
		a.store = store
	}

	// Playback engine
	a.engine = opts.Engine
	if a.engine == nil {
		a.engine = a.newEngine()
	}

	// Audio focus
	a.focus = opts.Focus
	if a.focus == nil && cfg.Bridge.FocusDBus && !cfg.Player.DryRun {
		a.focus = focusdbus.NewArbiter(mpris.BusName(mprisSuffix), logger)
	}

	a.controller = service.NewController(logger, a.engine, a.store, a.focus, a.bus, service.ControllerConfig{
		RefreshInterval: cfg.Player.RefreshInterval,
		DuckVolume:      cfg.Player.DuckVolume,
		AutoAdvance:     cfg.Player.AutoAdvance,
	})

	// Session bridges
	if opts.Bridges != nil {
		a.bridges = opts.Bridges
	} else {
		a.bridges = a.newBridges(opts.Headless)
	}

	return a, nil
}

// NewQueueStore opens the configured queue store backend. fyneApp backs the
// preferences store; when nil a fyne app is created for it.
func NewQueueStore(ctx context.Context, cfg config.Config, fyneApp fyne.App, logger *slog.Logger) (ports.QueueStore, error) {
	store := cfg.Store
	switch store.Backend {
	case config.StorePreferences:
		if fyneApp == nil {
			fyneApp = fyneapp.NewWithID(config.AppID)
		}
		return memory.NewQueueStore(fyneApp.Preferences(), logger), nil
	case config.StoreGCS:
		return gcs.NewQueueStore(ctx, gcs.Config{
			Bucket:          store.Bucket,
			Object:          store.Object,
			CredentialsFile: store.CredentialsFile,
			PollInterval:    store.PollInterval,
		}, logger)
	default:
		return file.NewQueueStore(store.Path, logger), nil
	}
}

func (a *Application) newEngine() ports.PlaybackEngine {
	if a.cfg.Player.DryRun || !stream.AudioAvailable {
		if !a.cfg.Player.DryRun {
			a.logger.Warn("audio output unavailable in this build, using a silent engine")
		}
		engine := mock.NewEngine()
		engine.SetLogger(a.logger.With(slog.String("engine", "mock")))
		return engine
	}
	return stream.NewEngine(a.logger.With(slog.String("engine", "stream")))
}

func (a *Application) newBridges(headless bool) []ports.SessionBridge {
	cfg := a.cfg.Bridge
	var bridges []ports.SessionBridge

	if cfg.HTTPAddr != "" {
		bridges = append(bridges, httpctl.NewServer(cfg.HTTPAddr, cfg.TokenFile, a.logger))
	}
	if cfg.MPRIS {
		bridges = append(bridges, mpris.NewBridge(mpris.BusName(mprisSuffix), AppName, a.logger))
	}

	useTray := cfg.Tray && !headless && a.fyneApp != nil
	if useTray {
		a.tray = tray.NewBridge(a.fyneApp, cfg.Notify, a.logger)
		bridges = append(bridges, a.tray)
	} else if cfg.Notify {
		bridges = append(bridges, notify.NewBridge(notify.BeeepSender(AppName), a.logger))
	}
	return bridges
}

// Resolver returns the catalog resolver.
func (a *Application) Resolver() *service.Resolver {
	return a.resolver
}

// Controller returns the playback controller.
func (a *Application) Controller() *service.Controller {
	return a.controller
}

// EventBus returns the application event bus.
func (a *Application) EventBus() ports.FilteringEventBus {
	return a.bus
}

// Store returns the queue store.
func (a *Application) Store() ports.QueueStore {
	return a.store
}

// Start launches the controller and attaches the session bridges. Bridges
// that fail to connect are logged and skipped. The tray is attached in the
// background because it only becomes ready once Run starts the UI loop.
func (a *Application) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.runCtx, a.cancel = context.WithCancel(ctx)
	runCtx := a.runCtx
	a.mu.Unlock()

	if err := a.controller.Start(runCtx); err != nil {
		return fmt.Errorf("failed to start controller: %w", err)
	}

	for _, bridge := range a.bridges {
		if _, isTray := bridge.(*tray.Bridge); isTray {
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				a.attach(runCtx, bridge)
			}()
			continue
		}
		a.attach(runCtx, bridge)
	}

	a.logger.Info("SaavnTune started", slog.Any("bridges", a.controller.Bridges()))
	return nil
}

func (a *Application) attach(ctx context.Context, bridge ports.SessionBridge) {
	if err := a.controller.AttachBridge(ctx, bridge); err != nil {
		a.logger.Debug("bridge skipped", slog.String("bridge", bridge.Name()), slog.Any("error", err))
	}
}

// Run blocks until ctx is done or the application shuts down. With a tray it
// runs the fyne main loop on the calling goroutine, which must be the main
// goroutine; quitting from the tray also returns. Start must have been called.
func (a *Application) Run(ctx context.Context) {
	a.mu.Lock()
	runCtx := a.runCtx
	a.mu.Unlock()
	if runCtx == nil {
		return
	}

	if a.tray == nil {
		select {
		case <-ctx.Done():
		case <-runCtx.Done():
		}
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		select {
		case <-ctx.Done():
		case <-runCtx.Done():
		}
		_ = a.tray.Close()
	}()
	a.fyneApp.Run()
}

// Shutdown stops the controller (which flushes the queue and closes bridges)
// and releases the store. It is safe to call more than once.
func (a *Application) Shutdown() error {
	a.mu.Lock()
	if a.shutdown {
		a.mu.Unlock()
		return nil
	}
	a.shutdown = true
	started := a.started
	cancel := a.cancel
	a.mu.Unlock()

	a.logger.Info("shutting down application")

	var errs []error
	if started {
		if err := a.controller.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("controller: %w", err))
		}
	} else if err := a.engine.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()

	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if err := a.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("eventbus: %w", err))
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
