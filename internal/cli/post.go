package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lendhand/lendhand/internal/fault"
	"github.com/lendhand/lendhand/internal/geo"
	"github.com/lendhand/lendhand/internal/request"
	"github.com/lendhand/lendhand/internal/store"
)

// PostOptions holds flags for the post command.
type PostOptions struct {
	*RootOptions
	Category    string
	Description string
	Duration    string
	Lat, Lon    float64
	HasCoords   bool
	Address     string
}

// NewPostCommand creates the post command.
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PostOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "post <title>",
		Short: "Post a new item request",
		Long: `Post a new item request to your locality.

The request opens immediately and everyone sharing your locality tag is
notified. Position comes from --lat/--lon, falling back to your registered
home position; without --address the position is reverse-geocoded.

Example:
  lendhand post "a soldering iron" --category Household --duration "2 hours"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.HasCoords = cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")
			return runPost(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Category, "category", "", "category (Academic|Tech|Household|Transport|Other)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "free-text details")
	cmd.Flags().StringVar(&opts.Duration, "duration", "", "how long you need it")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "latitude (defaults to your home position)")
	cmd.Flags().Float64Var(&opts.Lon, "lon", 0, "longitude")
	cmd.Flags().StringVar(&opts.Address, "address", "", "shown address (skips reverse geocoding)")

	return cmd
}

func runPost(opts *PostOptions, title string, cmd *cobra.Command) error {
	f := formatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	a, err := newApp(opts.RootOptions)
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	poster, err := a.currentUser(ctx, opts.RootOptions)
	if err != nil {
		return f.Fail(err)
	}

	var category store.Category
	if opts.Category != "" {
		category, err = store.ParseCategory(opts.Category)
		if err != nil {
			return f.Fail(fault.NewValidation("category", err.Error()))
		}
	}

	loc, err := resolveLocation(ctx, opts, poster, a.geocoder, f)
	if err != nil {
		return f.Fail(err)
	}

	req, report, err := a.requests.Create(ctx, request.CreateParams{
		Title:       title,
		Category:    category,
		Description: opts.Description,
		Duration:    opts.Duration,
		Poster:      poster,
		Location:    loc,
	})
	if err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.Success(struct {
			Request  store.Request `json:"request"`
			Notified int           `json:"notified"`
			Intended int           `json:"intended"`
		}{req, report.Notified, report.Intended})
	}

	out := fmt.Sprintf("posted %q (id %s)\nnotified %d of %d neighbors in %q",
		req.Title, req.ID, report.Notified, report.Intended, poster.Locality)
	if rerr := report.Err(); rerr != nil {
		out += fmt.Sprintf("\nwarning: %v", rerr)
	}
	return f.Success(out)
}

// resolveLocation picks the post position and its display address. Flags
// win over the registered home position; a missing address is filled by the
// reverse geocoder, degrading to raw coordinates when the lookup fails.
func resolveLocation(ctx context.Context, opts *PostOptions, poster store.User, geocoder geo.ReverseGeocoder, f *OutputFormatter) (*geo.Location, error) {
	var point *geo.Point
	switch {
	case opts.HasCoords:
		point = &geo.Point{Latitude: opts.Lat, Longitude: opts.Lon}
	case poster.Location != nil:
		point = poster.Location
	default:
		return nil, nil // Create reports the missing location
	}

	loc := &geo.Location{Point: *point, Address: opts.Address}
	if loc.Address == "" {
		addr, err := geocoder.Reverse(ctx, *point)
		if err != nil {
			f.VerboseLog("reverse geocode failed: %v", err)
			addr = fmt.Sprintf("%.4f, %.4f", point.Latitude, point.Longitude)
		}
		loc.Address = addr
	}
	return loc, nil
}
