// Package cli implements the saavntune command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
	"github.com/tejashwikalptaru/saavntune/internal/config"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/logger"
)

// Commands returns every top-level subcommand.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		SearchCmd(),
		ArtistCmd(),
		AlbumCmd(),
		PlaylistCmd(),
		SuggestCmd(),
		PlayCmd(),
		ResumeCmd(),
		QueueCmd(),
		CtlCmd(),
		VersionCmd(),
	}
}

func defaultParamEnricher() boa.ParamEnricher {
	return boa.ParamEnricherCombine(
		boa.ParamEnricherBool,
		boa.ParamEnricherName,
	)
}

// env is what every command needs before doing its work.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	out    io.Writer
	in     io.Reader // session commands; nil disables the console
}

func loadEnv(configPath string, out io.Writer) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	l := logger.NewLogger(cfg.Log)
	if cfg.Source != "" {
		l.Debug("config loaded", slog.String("path", cfg.Source))
	}
	return &env{cfg: cfg, logger: l, out: out}, nil
}

// exitOnError reports err to stderr in user terms and exits.
func exitOnError(name string, err error) {
	if err == nil {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "%s: %s\n", name, domain.UserMessage(err))
	os.Exit(1)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
