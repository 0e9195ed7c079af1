package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
	"github.com/tejashwikalptaru/saavntune/internal/app"
	"github.com/tejashwikalptaru/saavntune/internal/config"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
	"github.com/tejashwikalptaru/saavntune/internal/service"
)

// resumeTimeout bounds the wait for the persisted queue to be adopted.
const resumeTimeout = 5 * time.Second

var errNothingToResume = errors.New("no saved queue to resume")

type PlayParams struct {
	Query    []string `pos:"true" required:"true" help:"What to play."`
	Artist   bool     `help:"Play an artist's songs." default:"false"`
	Album    bool     `help:"Play an album." default:"false"`
	Playlist bool     `help:"Play a playlist." default:"false"`
	Index    int      `short:"i" help:"Position in the resolved list to start from." default:"0"`
	Headless bool     `help:"Run without the system tray." default:"false"`
	DryRun   bool     `help:"Drive the queue without producing audio." default:"false"`
	Config   string   `short:"c" optional:"true" help:"Path to a config.toml file."`
}

type ResumeParams struct {
	Headless bool   `help:"Run without the system tray." default:"false"`
	DryRun   bool   `help:"Drive the queue without producing audio." default:"false"`
	Config   string `short:"c" optional:"true" help:"Path to a config.toml file."`
}

func PlayCmd() *cobra.Command {
	return boa.CmdT[PlayParams]{
		Use:         "play",
		Short:       "Resolve a query and play it until interrupted",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *PlayParams, cmd *cobra.Command, args []string) {
			e, err := loadEnv(params.Config, os.Stdout)
			exitOnError("play", err)
			e.in = os.Stdin

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			exitOnError("play", runPlay(ctx, e, params, app.Options{Headless: params.Headless}))
		},
	}.ToCobra()
}

func ResumeCmd() *cobra.Command {
	return boa.CmdT[ResumeParams]{
		Use:         "resume",
		Short:       "Play the saved queue from where it stopped",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *ResumeParams, cmd *cobra.Command, args []string) {
			e, err := loadEnv(params.Config, os.Stdout)
			exitOnError("resume", err)
			e.in = os.Stdin

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			exitOnError("resume", runResume(ctx, e, params, app.Options{Headless: params.Headless}))
		},
	}.ToCobra()
}

// pickSongs resolves the query the way the flags ask for.
func pickSongs(ctx context.Context, resolver *service.Resolver, params *PlayParams) (string, []domain.Song, error) {
	modes := 0
	for _, set := range []bool{params.Artist, params.Album, params.Playlist} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return "", nil, errors.New("use only one of --artist, --album and --playlist")
	}

	query := joinQuery(params.Query)
	switch {
	case params.Artist:
		return resolver.ResolveArtist(ctx, query)
	case params.Album:
		return resolver.ResolveAlbum(ctx, query)
	case params.Playlist:
		return resolver.ResolvePlaylist(ctx, query)
	}

	songs, err := resolver.Resolve(ctx, query)
	return query, songs, err
}

// sessionOptions fills in a fyne app when the store or the tray need one,
// so that both share it.
func sessionOptions(cfg config.Config, opts app.Options) app.Options {
	if opts.FyneApp != nil {
		return opts
	}
	needsTray := cfg.Bridge.Tray && !opts.Headless
	if cfg.Store.Backend == config.StorePreferences || needsTray {
		opts.FyneApp = fyneapp.NewWithID(config.AppID)
	}
	return opts
}

func runPlay(ctx context.Context, e *env, params *PlayParams, opts app.Options) error {
	cfg := e.cfg
	cfg.Player.DryRun = cfg.Player.DryRun || params.DryRun

	a, err := app.New(ctx, cfg, e.logger, sessionOptions(cfg, opts))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Shutdown(); err != nil {
			e.logger.Warn("shutdown incomplete", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	label, songs, err := pickSongs(ctx, a.Resolver(), params)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return fmt.Errorf("nothing playable for %q", joinQuery(params.Query))
	}
	if params.Index < 0 || params.Index >= len(songs) {
		return fmt.Errorf("--index %d is out of range (0..%d)", params.Index, len(songs)-1)
	}

	printer := newSessionPrinter(e.out)
	printer.watch(a.EventBus())

	if err := a.Start(ctx); err != nil {
		return err
	}

	printer.printf("Queued %d songs from %s\n", len(songs), titleStyle.Render(label))
	a.Controller().Play(songs[params.Index], songs)

	waitConsole := attachConsole(ctx, e, a, printer, cancel)
	defer waitConsole()

	a.Run(ctx)
	cancel()
	return nil
}

func runResume(ctx context.Context, e *env, params *ResumeParams, opts app.Options) error {
	cfg := e.cfg
	cfg.Player.DryRun = cfg.Player.DryRun || params.DryRun
	opts = sessionOptions(cfg, opts)

	if opts.Store == nil {
		store, err := app.NewQueueStore(ctx, cfg, opts.FyneApp, e.logger)
		if err != nil {
			return err
		}
		opts.Store = store
	}

	snapshot, err := firstSnapshot(ctx, opts.Store)
	if err == nil && !snapshot.Hydratable() {
		err = errNothingToResume
	}
	if err != nil {
		closeStore(opts.Store)
		return err
	}

	a, err := app.New(ctx, cfg, e.logger, opts)
	if err != nil {
		closeStore(opts.Store)
		return err
	}
	defer func() {
		if err := a.Shutdown(); err != nil {
			e.logger.Warn("shutdown incomplete", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hydrated := make(chan struct{})
	var once sync.Once
	bus := a.EventBus()
	subID := bus.Subscribe(domain.EventQueueHydrated, func(domain.Event) {
		once.Do(func() { close(hydrated) })
	})
	defer bus.Unsubscribe(subID)

	printer := newSessionPrinter(e.out)
	printer.watch(bus)

	if err := a.Start(ctx); err != nil {
		return err
	}

	select {
	case <-hydrated:
	case <-ctx.Done():
		return nil
	case <-time.After(resumeTimeout):
		return errNothingToResume
	}

	printer.printf("Resuming %d songs\n", len(snapshot.Queue))
	a.Controller().PlayPause()

	waitConsole := attachConsole(ctx, e, a, printer, cancel)
	defer waitConsole()

	a.Run(ctx)
	cancel()
	return nil
}

// attachConsole reads session commands from the environment's input until
// ctx ends. The returned function waits for the console to stop.
func attachConsole(ctx context.Context, e *env, a *app.Application, printer *sessionPrinter, quit context.CancelFunc) func() {
	if e.in == nil {
		return func() {}
	}

	c := newConsole(a.Controller(), a.Resolver(), printer, quit)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.run(ctx, e.in)
	}()
	return func() { <-done }
}

// firstSnapshot reads the current value of the store.
func firstSnapshot(ctx context.Context, store ports.QueueStore) (domain.QueueSnapshot, error) {
	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshots, err := store.Load(loadCtx)
	if err != nil {
		return domain.QueueSnapshot{}, err
	}

	select {
	case s, ok := <-snapshots:
		if !ok {
			return domain.EmptySnapshot(), nil
		}
		return s, nil
	case <-ctx.Done():
		return domain.QueueSnapshot{}, ctx.Err()
	}
}

func closeStore(store ports.QueueStore) {
	if closer, ok := store.(io.Closer); ok {
		_ = closer.Close()
	}
}

// sessionPrinter reports song changes and playback errors while a session runs.
type sessionPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func newSessionPrinter(out io.Writer) *sessionPrinter {
	return &sessionPrinter{out: out}
}

func (p *sessionPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, format, args...)
}

func (p *sessionPrinter) render(fn func(out io.Writer)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.out)
}

// hasSong drops song changes that leave nothing loaded.
func hasSong(e domain.Event) bool {
	sc, ok := e.(domain.SongChangedEvent)
	return ok && sc.Song != nil
}

func (p *sessionPrinter) watch(bus ports.FilteringEventBus) {
	bus.SubscribeFiltered(domain.EventSongChanged, hasSong, func(e domain.Event) {
		sc := e.(domain.SongChangedEvent)
		p.printf("%s\n", nowPlayingLine(sc.Song.Name, sc.Song.Artists, fmt.Sprintf("#%d", sc.Index), 0, int64(sc.Song.Duration)*1000))
	})

	bus.Subscribe(domain.EventPlaybackError, func(e domain.Event) {
		pe, ok := e.(domain.PlaybackErrorEvent)
		if !ok {
			return
		}
		name := "current song"
		if pe.Song != nil {
			name = pe.Song.Name
		}
		p.printf("%s %s: %s\n", hintStyle.Render("[error]"), name, domain.UserMessage(pe.Error))
	})
}
