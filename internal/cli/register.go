package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lendhand/lendhand/internal/directory"
	"github.com/lendhand/lendhand/internal/geo"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Locality  string
	Lat, Lon  float64
	HasCoords bool
	AvatarRef string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <display-name>",
		Short: "Create an account in this community",
		Long: `Create an account in this community.

The locality tag decides who sees your requests and whose requests alert
you; spelling and case do not matter ("North Campus" matches "north campus").

Example:
  lendhand register "Paula" --locality "North Campus" --lat 42.35 --lon -71.09`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.HasCoords = cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")
			return runRegister(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Locality, "locality", "", "locality tag (required)")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "home latitude")
	cmd.Flags().Float64Var(&opts.Lon, "lon", 0, "home longitude")
	cmd.Flags().StringVar(&opts.AvatarRef, "avatar", "", "opaque avatar reference")
	_ = cmd.MarkFlagRequired("locality")

	return cmd
}

func runRegister(opts *RegisterOptions, displayName string, cmd *cobra.Command) error {
	f := formatter(opts.RootOptions, cmd)

	a, err := newApp(opts.RootOptions)
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	p := directory.RegisterParams{
		DisplayName: displayName,
		Locality:    opts.Locality,
		AvatarRef:   opts.AvatarRef,
	}
	if opts.HasCoords {
		p.Location = &geo.Point{Latitude: opts.Lat, Longitude: opts.Lon}
	}

	u, err := a.dir.Register(cmd.Context(), p)
	if err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.Success(u)
	}
	return f.Success(fmt.Sprintf("registered %s in %q\nid: %s\nuse it with --user %s (or set user.id in the config)",
		u.DisplayName, u.Locality, u.ID, u.ID))
}
