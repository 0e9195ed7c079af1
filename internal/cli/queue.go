package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
	"github.com/tejashwikalptaru/saavntune/internal/app"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

type QueueParams struct {
	Action string `pos:"true" optional:"true" help:"What to do with the saved queue." default:"list" alts:"list,clear"`
	Config string `short:"c" optional:"true" help:"Path to a config.toml file."`
}

func QueueCmd() *cobra.Command {
	return boa.CmdT[QueueParams]{
		Use:         "queue",
		Short:       "Show or clear the saved queue",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *QueueParams, cmd *cobra.Command, args []string) {
			e, err := loadEnv(params.Config, os.Stdout)
			exitOnError("queue", err)

			ctx := commandContext(cmd)
			store, err := app.NewQueueStore(ctx, e.cfg, nil, e.logger)
			exitOnError("queue", err)
			defer closeStore(store)

			exitOnError("queue", runQueue(ctx, store, params, e.out))
		},
	}.ToCobra()
}

func runQueue(ctx context.Context, store ports.QueueStore, params *QueueParams, out io.Writer) error {
	switch params.Action {
	case "", "list":
		snapshot, err := firstSnapshot(ctx, store)
		if err != nil {
			return err
		}
		if len(snapshot.Queue) == 0 {
			_, _ = fmt.Fprintln(out, "The saved queue is empty")
			return nil
		}
		renderSongs(out, snapshot.Queue, snapshot.CurrentIndex)
		return nil

	case "clear":
		if err := store.Clear(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, "Saved queue cleared")
		return nil

	default:
		return fmt.Errorf("unknown queue action %q (use list or clear)", params.Action)
	}
}
