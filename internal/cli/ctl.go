package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/session"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/session/httpctl"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
)

const (
	ctlStatus  = "status"
	ctlTimeout = 3 * time.Second
)

type CtlParams struct {
	Action string `pos:"true" required:"true" help:"Command for the running player." alts:"play_pause,next,previous,status"`
	Config string `short:"c" optional:"true" help:"Path to a config.toml file."`
}

func CtlCmd() *cobra.Command {
	return boa.CmdT[CtlParams]{
		Use:         "ctl",
		Short:       "Control a running player",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *CtlParams, cmd *cobra.Command, args []string) {
			e, err := loadEnv(params.Config, os.Stdout)
			exitOnError("ctl", err)

			client := httpctl.NewClient(e.cfg.Bridge.TokenFile, ctlTimeout)
			exitOnError("ctl", runCtl(commandContext(cmd), client, params, e.out))
		},
	}.ToCobra()
}

func runCtl(ctx context.Context, client *httpctl.Client, params *CtlParams, out io.Writer) error {
	if params.Action == ctlStatus {
		view, err := client.State(ctx)
		if err != nil {
			return err
		}
		renderStateView(out, view)
		return nil
	}

	if !lo.Contains(session.Actions, params.Action) {
		return fmt.Errorf("unknown action %q (use play_pause, next, previous or status)", params.Action)
	}
	return client.Send(ctx, params.Action)
}

func renderStateView(out io.Writer, view httpctl.StateView) {
	_, _ = fmt.Fprintln(out, nowPlayingLine(view.Title, view.Artist, view.Status, view.PositionMs, view.DurationMs))
	if len(view.Queue) == 0 {
		return
	}

	songs := lo.Map(view.Queue, func(s httpctl.SongView, _ int) domain.Song {
		return domain.Song{ID: s.ID, Name: s.Name, Artists: s.Artists, Duration: s.Duration}
	})
	renderSongs(out, songs, view.CurrentIndex)
}
