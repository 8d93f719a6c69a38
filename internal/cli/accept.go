package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewAcceptCommand creates the accept command.
func NewAcceptCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <request-id>",
		Short: "Accept an open request",
		Long: `Accept an open request, committing to help.

Acceptance is first-come-first-served: if someone else got there first the
command fails with "already accepted" and exit code 1, and nothing changes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccept(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runAccept(opts *RootOptions, requestID string, cmd *cobra.Command) error {
	f := formatter(opts, cmd)
	ctx := cmd.Context()

	a, err := newApp(opts)
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	acceptor, err := a.currentUser(ctx, opts)
	if err != nil {
		return f.Fail(err)
	}

	req, err := a.requests.Accept(ctx, requestID, acceptor.ID)
	if err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.Success(req)
	}
	return f.Success(fmt.Sprintf("accepted %q — chat with %s via: lendhand chat send %s <text>",
		req.Title, req.OwnerName, req.ID))
}
