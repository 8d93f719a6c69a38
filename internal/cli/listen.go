package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lendhand/lendhand/internal/clock"
	"github.com/lendhand/lendhand/internal/notify"
)

// NewListenCommand creates the listen command.
func NewListenCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Wait for live notifications",
		Long: `Wait for notifications addressed to you and print each one as it
arrives.

Only genuinely new notifications alert; records older than the freshness
window (backlog replayed on reconnect) are absorbed silently. Stop with
Ctrl-C.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(rootOpts, cmd)
		},
	}
	return cmd
}

func runListen(opts *RootOptions, cmd *cobra.Command) error {
	f := formatter(opts, cmd)
	ctx := cmd.Context()

	a, err := newApp(opts)
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	me, err := a.currentUser(ctx, opts)
	if err != nil {
		return f.Fail(err)
	}

	present := notify.PresenterFunc(func(title, body string) {
		if opts.Format == "json" {
			_ = f.Success(map[string]string{"title": title, "body": body})
			return
		}
		f.println(fmt.Sprintf("🔔 %s — %s", title, body))
	})

	listener := notify.NewListener(a.store, clock.System{}, present,
		notify.WithFreshnessWindow(opts.Config.Notify.FreshnessWindow()))

	f.VerboseLog("listening as %s (window %s)", me.ID, opts.Config.Notify.FreshnessWindow())
	if err := listener.Listen(ctx, me.ID); err != nil {
		return f.Fail(err)
	}
	return nil
}
