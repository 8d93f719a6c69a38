package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lendhand/lendhand/internal/store"
)

// ProfileOptions holds flags for the profile command.
type ProfileOptions struct {
	*RootOptions
	SetName string
}

// NewProfileCommand creates the profile command.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProfileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile and activity stats",
		Long: `Show your profile: display name, locality, and how many requests you
posted and helped with. --set-name renames you going forward; messages you
already sent keep the name they were sent under.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SetName, "set-name", "", "change your display name")
	return cmd
}

func runProfile(opts *ProfileOptions, cmd *cobra.Command) error {
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

	if opts.SetName != "" {
		me, err = a.dir.UpdateDisplayName(ctx, me.ID, opts.SetName)
		if err != nil {
			return f.Fail(err)
		}
	}

	posted, helped, err := a.dir.ProfileStats(ctx, me.ID)
	if err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.Success(struct {
			User   store.User `json:"user"`
			Posted int        `json:"posted"`
			Helped int        `json:"helped"`
		}{me, posted, helped})
	}
	return f.Success(fmt.Sprintf("%s (%s)\nlocality: %s\nposted: %d  helped: %d",
		me.DisplayName, me.ID, me.Locality, posted, helped))
}
