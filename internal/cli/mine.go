package cli

import (
	"github.com/spf13/cobra"

	"github.com/lendhand/lendhand/internal/livequery"
	"github.com/lendhand/lendhand/internal/request"
	"github.com/lendhand/lendhand/internal/store"
)

// MineOptions holds flags for the mine command.
type MineOptions struct {
	*RootOptions
	Helping bool
	Watch   bool
}

// NewMineCommand creates the mine command.
func NewMineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Show your requests",
		Long: `Show the requests you posted, in every state.

With --helping, show the requests you accepted instead.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMine(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Helping, "helping", false, "show requests you accepted")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "stream live changes")
	return cmd
}

func runMine(opts *MineOptions, cmd *cobra.Command) error {
	f := formatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	a, err := newApp(opts.RootOptions)
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	me, err := a.currentUser(ctx, opts.RootOptions)
	if err != nil {
		return f.Fail(err)
	}

	q := request.Mine(a.store, me.ID)
	filter := store.RequestFilter{OwnerID: me.ID}
	if opts.Helping {
		q = request.Helping(a.store, me.ID)
		filter = store.RequestFilter{AcceptedBy: me.ID}
	}

	if !opts.Watch {
		reqs, err := a.store.ListRequests(ctx, filter)
		if err != nil {
			return f.Fail(err)
		}
		if opts.Format == "json" {
			return f.Success(reqs)
		}
		WriteRequestList(f.Writer, reqs, me.Location)
		return nil
	}

	sub := livequery.Subscribe(ctx, a.store, q)
	defer sub.Unsubscribe()
	return streamRequests(ctx, f, sub, me.Location)
}
