package cli

import (
	"github.com/spf13/cobra"

	"github.com/lendhand/lendhand/internal/livequery"
	"github.com/lendhand/lendhand/internal/merge"
	"github.com/lendhand/lendhand/internal/request"
	"github.com/lendhand/lendhand/internal/store"
)

// ChatsOptions holds flags for the chats command.
type ChatsOptions struct {
	*RootOptions
	Watch bool
}

// NewChatsCommand creates the chats command.
func NewChatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Show every request you can chat on",
		Long: `Show every request you can chat on: those you posted and those you
accepted, merged into one deduplicated list, newest first.

With --watch the list reprints whenever either side changes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChats(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "reprint on changes")
	return cmd
}

func runChats(opts *ChatsOptions, cmd *cobra.Command) error {
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

	m := merge.New[store.Request](func(x, y store.Request) bool {
		return x.CreatedAt.After(y.CreatedAt)
	})

	if opts.Watch {
		m.OnChange(func(view []store.Request) {
			f.println("---")
			WriteRequestList(f.Writer, view, me.Location)
		})
	}

	streams := map[string]*livequery.Subscription[store.Request]{
		"posted":  livequery.Subscribe(ctx, a.store, request.Mine(a.store, me.ID)),
		"helping": livequery.Subscribe(ctx, a.store, request.Helping(a.store, me.ID)),
	}
	for _, sub := range streams {
		defer sub.Unsubscribe()
	}

	if opts.Watch {
		m.Run(streams) // returns when ctx cancels and the streams close
		return nil
	}

	// One-shot: fold just the initial snapshots into the merged view.
	for name, sub := range streams {
		select {
		case ev := <-sub.Events():
			if ev.Kind == livequery.KindError {
				return f.Fail(ev.Err)
			}
			m.Apply(name, ev)
		case <-ctx.Done():
			return nil
		}
	}

	view := m.View()
	if opts.Format == "json" {
		return f.Success(view)
	}
	WriteRequestList(f.Writer, view, me.Location)
	return nil
}
