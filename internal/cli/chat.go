package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/lendhand/lendhand/internal/livequery"
	"github.com/lendhand/lendhand/internal/store"
)

// NewChatCommand creates the chat command group.
func NewChatCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Message on a request's thread",
	}
	cmd.AddCommand(newChatSendCommand(rootOpts))
	cmd.AddCommand(newChatWatchCommand(rootOpts))
	return cmd
}

func newChatSendCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <request-id> <text>...",
		Short: "Send a message on a request's thread",
		Long: `Send a message on a request's thread. Remaining arguments are joined
into the message text.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatSend(rootOpts, args[0], strings.Join(args[1:], " "), cmd)
		},
	}
}

func runChatSend(opts *RootOptions, requestID, text string, cmd *cobra.Command) error {
	f := formatter(opts, cmd)
	ctx := cmd.Context()

	a, err := newApp(opts)
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	sender, err := a.currentUser(ctx, opts)
	if err != nil {
		return f.Fail(err)
	}

	m, err := a.chat.Send(ctx, requestID, sender, text)
	if err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.Success(m)
	}
	return f.Success(MessageLine(m))
}

func newChatWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <request-id>",
		Short: "Follow a request's thread live",
		Long: `Print a request's message history and then every new message as it
arrives. Stop with Ctrl-C.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatWatch(rootOpts, args[0], cmd)
		},
	}
}

func runChatWatch(opts *RootOptions, requestID string, cmd *cobra.Command) error {
	f := formatter(opts, cmd)
	ctx := cmd.Context()

	a, err := newApp(opts)
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	sub := a.chat.Subscribe(ctx, requestID)
	defer sub.Unsubscribe()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := renderMessageEvent(f, ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func renderMessageEvent(f *OutputFormatter, ev livequery.Event[store.Message]) error {
	if ev.Kind == livequery.KindError {
		return f.Fail(ev.Err)
	}
	if f.Format == "json" {
		return f.Success(struct {
			Event    string          `json:"event"`
			Message  *store.Message  `json:"message,omitempty"`
			Messages []store.Message `json:"messages,omitempty"`
		}{
			Event:    ev.Kind.String(),
			Message:  messageRecord(ev),
			Messages: ev.Records,
		})
	}

	switch ev.Kind {
	case livequery.KindSnapshot:
		for _, m := range ev.Records {
			f.println(MessageLine(m))
		}
	case livequery.KindAdded:
		f.println(MessageLine(ev.Record))
	}
	return nil
}

func messageRecord(ev livequery.Event[store.Message]) *store.Message {
	if ev.Kind == livequery.KindSnapshot {
		return nil
	}
	m := ev.Record
	return &m
}
