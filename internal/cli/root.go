package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lendhand/lendhand/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DBPath     string // overrides config
	UserID     string // overrides config
	Verbose    bool
	Format     string // "json" | "text"

	Config config.Config // resolved in PersistentPreRunE
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the lendhand CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lendhand",
		Short: "lendhand - borrow and lend with your neighbors",
		Long: "A real-time coordination engine for community item requests:\n" +
			"post what you need, accept what you can lend, chat per request.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if err := opts.resolveConfig(); err != nil {
				return err
			}
			level := opts.Config.Log.SlogLevel()
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(),
				&slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default lendhand.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "database file (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.UserID, "user", "", "act as this user id (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Subcommands
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewPostCommand(opts))
	cmd.AddCommand(NewAcceptCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewFeedCommand(opts))
	cmd.AddCommand(NewMineCommand(opts))
	cmd.AddCommand(NewChatsCommand(opts))
	cmd.AddCommand(NewChatCommand(opts))
	cmd.AddCommand(NewListenCommand(opts))
	cmd.AddCommand(NewNotificationsCommand(opts))
	cmd.AddCommand(NewProfileCommand(opts))

	return cmd
}

// resolveConfig loads the config file and applies flag overrides. An
// explicit --config must exist; the default path is optional.
func (o *RootOptions) resolveConfig() error {
	path := o.ConfigPath
	if path == "" {
		if _, err := os.Stat("lendhand.yaml"); err == nil {
			path = "lendhand.yaml"
		}
	}
	if path == "" {
		o.Config = config.Default()
	} else {
		cfg, err := config.Load(path)
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeConfig, err)
		}
		o.Config = cfg
	}
	if o.DBPath != "" {
		o.Config.DB.Path = o.DBPath
	}
	if o.UserID != "" {
		o.Config.User.ID = o.UserID
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
