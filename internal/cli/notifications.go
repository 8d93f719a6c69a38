package cli

import (
	"github.com/spf13/cobra"
)

// NotificationsOptions holds flags for the notifications command.
type NotificationsOptions struct {
	*RootOptions
	MarkRead string
}

// NewNotificationsCommand creates the notifications command.
func NewNotificationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotificationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List your notifications",
		Long: `List your notifications, oldest first. Unread rows are marked with a
bullet. --mark-read flips one of your own notifications to read.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifications(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MarkRead, "mark-read", "", "mark the given notification id read")
	return cmd
}

func runNotifications(opts *NotificationsOptions, cmd *cobra.Command) error {
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

	if opts.MarkRead != "" {
		ok, err := a.store.MarkNotificationRead(ctx, opts.MarkRead, me.ID)
		if err != nil {
			return f.Fail(err)
		}
		if !ok {
			f.VerboseLog("nothing to mark: %s is not an unread notification of yours", opts.MarkRead)
		}
	}

	notes, err := a.store.ListNotifications(ctx, me.ID)
	if err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.Success(notes)
	}
	if len(notes) == 0 {
		f.println("(no notifications)")
		return nil
	}
	for _, n := range notes {
		f.println(NotificationLine(n))
	}
	return nil
}
