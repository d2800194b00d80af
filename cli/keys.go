package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"moochat/api"
	"moochat/model"
	"moochat/provider"
)

var keyProviders = []string{model.ProviderGoogle, model.ProviderOpenAI, model.ProviderAnthropic}

func newKeysCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys stored by the server",
	}
	cmd.AddCommand(newKeysListCmd(v), newKeysAddCmd(v), newKeysRenameCmd(v), newKeysRemoveCmd(v))
	return cmd
}

func newKeysListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List API keys",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			keys, err := a.client.ListAPIKeys(cmd.Context())
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Fprintln(a.out, "No API keys. Add one with: moochat keys add --provider openai")
				return nil
			}
			rows := make([][]string, len(keys))
			for i, k := range keys {
				rows[i] = []string{k.ID, k.Provider, k.Name}
			}
			printTable(a.out, []string{"ID", "PROVIDER", "NAME"}, rows)
			return nil
		},
	}
}

func newKeysAddCmd(v *viper.Viper) *cobra.Command {
	var (
		providerID string
		name       string
		noValidate bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Validate a provider key and store it on the server",
		Long: "Validate a provider key and store it on the server.\n" +
			"The secret is read from MOOCHAT_API_KEY or prompted for.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(keyProviders, providerID) {
				return fmt.Errorf("--provider must be one of %s", strings.Join(keyProviders, ", "))
			}
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}

			secret := os.Getenv("MOOCHAT_API_KEY")
			if secret == "" {
				if secret, err = readSecret(cmd, providerID+" API key: "); err != nil {
					return err
				}
			}
			if secret == "" {
				return fmt.Errorf("no key given")
			}

			if !noValidate {
				if err := provider.Validate(cmd.Context(), providerID, secret); err != nil {
					return fmt.Errorf("key rejected by %s: %w", providerID, err)
				}
			}
			ref, err := a.client.CreateAPIKey(cmd.Context(), api.APIKeyCreate{Provider: providerID, Name: name, Key: secret})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added %s key %s\n", ref.Provider, ref.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&providerID, "provider", "p", "", "provider: "+strings.Join(keyProviders, ", "))
	cmd.Flags().StringVarP(&name, "name", "n", "", "label for the key")
	cmd.Flags().BoolVar(&noValidate, "no-validate", false, "store the key without checking it against the provider")
	return cmd
}

func newKeysRenameCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename an API key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			ref, err := a.client.UpdateAPIKey(cmd.Context(), args[0], api.APIKeyUpdate{Name: api.String(args[1])})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Renamed %s to %q\n", ref.ID, ref.Name)
			return nil
		},
	}
}

func newKeysRemoveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete an API key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			if err := a.client.DeleteAPIKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted key %s\n", args[0])
			return nil
		},
	}
}
