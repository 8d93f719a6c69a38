package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lendhand/lendhand/internal/chat"
	"github.com/lendhand/lendhand/internal/clock"
	"github.com/lendhand/lendhand/internal/directory"
	"github.com/lendhand/lendhand/internal/geo"
	"github.com/lendhand/lendhand/internal/ident"
	"github.com/lendhand/lendhand/internal/notify"
	"github.com/lendhand/lendhand/internal/request"
	"github.com/lendhand/lendhand/internal/store"
)

// app wires the engine for one command invocation. Every command opens its
// own app and closes it on return.
type app struct {
	store    *store.Store
	dir      *directory.Service
	requests *request.Service
	chat     *chat.Service
	notify   *notify.Engine
	geocoder geo.ReverseGeocoder
}

func newApp(opts *RootOptions) (*app, error) {
	s, err := store.Open(opts.Config.DB.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeStore, err)
	}

	clk := clock.System{}
	ids := ident.UUIDv7Generator{}
	dir := directory.NewService(s, clk, ids)
	fan := notify.NewEngine(s, dir, clk, ids)

	return &app{
		store:    s,
		dir:      dir,
		requests: request.NewService(s, clk, ids, fan),
		chat:     chat.NewService(s, clk, ids),
		notify:   fan,
		geocoder: &geo.NominatimClient{BaseURL: opts.Config.Geocode.BaseURL},
	}, nil
}

func (a *app) Close() error { return a.store.Close() }

// currentUser resolves the configured identity. Commands that mutate on
// behalf of someone require it.
func (a *app) currentUser(ctx context.Context, opts *RootOptions) (store.User, error) {
	if opts.Config.User.ID == "" {
		return store.User{}, NewExitError(ExitCommandError,
			"no user configured: set user.id in the config file or pass --user")
	}
	return a.dir.CurrentUser(ctx, opts.Config.User.ID)
}

// formatter builds the command's output formatter from the global flags.
func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
