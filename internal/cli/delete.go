package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <request-id>",
		Short: "Delete one of your own requests",
		Long: `Delete one of your own requests.

Only the poster may delete. The chat thread, if any, is kept as history.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runDelete(opts *RootOptions, requestID string, cmd *cobra.Command) error {
	f := formatter(opts, cmd)
	ctx := cmd.Context()

	a, err := newApp(opts)
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	actor, err := a.currentUser(ctx, opts)
	if err != nil {
		return f.Fail(err)
	}

	if err := a.requests.Delete(ctx, requestID, actor.ID); err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.Success(map[string]string{"deleted": requestID})
	}
	return f.Success(fmt.Sprintf("deleted %s", requestID))
}
