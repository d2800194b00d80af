// Package cli implements the moochat command line. Running it without a
// subcommand opens the full-screen chat.
package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"moochat/config"
	"moochat/settings"
	"moochat/ui"
)

// Execute runs the root command with the process arguments.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCmd(version).ExecuteContext(ctx)
}

// NewRootCmd builds the command tree. Flags are bound to a fresh viper
// instance so separate trees do not share state.
func NewRootCmd(version string) *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:          "moochat",
		Short:        "Chat with hosted models from the terminal",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			firstRun := !config.SystemConfigExists()
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			if firstRun {
				cmd.PrintErrf("Created %s with defaults.\n", config.GetSettingsFilePath())
			}

			store, err := a.openStore()
			if err != nil {
				// the chat works without the cache, search and resume do not
				cmd.PrintErrf("Warning: %v\n", err)
			} else {
				defer store.Close()
			}

			return ui.Run(ui.Deps{
				Config:   a.cfg,
				Client:   a.client,
				Store:    store,
				Settings: settings.NewService(),
				Version:  version,
			})
		},
	}

	flags := root.PersistentFlags()
	flags.String("server", "", "backend URL, overrides settings.toml and MOOCHAT_SERVER_URL")
	flags.StringP("model", "m", "", "model id, as listed by moochat models")
	flags.Bool("debug", false, "write debug.log to the data directory")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	root.AddCommand(
		newLoginCmd(v),
		newRegisterCmd(v),
		newLogoutCmd(v),
		newWhoamiCmd(v),
		newSendCmd(v),
		newKeysCmd(v),
		newConversationsCmd(v),
		newMCPCmd(v),
		newModelsCmd(v),
		newHealthCmd(v),
		newConfigCmd(v),
	)
	return root
}
