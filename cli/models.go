package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"moochat/model"
)

func newModelsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models moochat can talk to",
		Long: "List the models moochat can talk to. When logged in, models whose\n" +
			"provider has no stored API key are marked.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, v, false)
			if err != nil {
				return err
			}

			var providers []string
			known := false
			if a.client.Token() != "" {
				keys, err := a.client.ListAPIKeys(cmd.Context())
				if err != nil {
					fmt.Fprintf(a.errOut, "Warning: could not list API keys: %v\n", err)
				} else {
					providers = model.Providers(keys)
					known = true
				}
			}

			rows := make([][]string, 0, len(model.Catalog))
			for _, m := range model.Catalog {
				id := m.ID
				if id == a.cfg.DefaultModel {
					id += " *"
				}
				var features []string
				if m.SupportsTools {
					features = append(features, "tools")
				}
				if m.Reasoning {
					features = append(features, "reasoning")
				}
				key := "?"
				switch {
				case !m.RequiresKey:
					key = "not needed"
				case known && slices.Contains(providers, m.Provider):
					key = "ok"
				case known:
					key = "missing"
				}
				rows = append(rows, []string{id, m.DisplayName, m.Provider, strings.Join(features, ", "), key})
			}
			printTable(a.out, []string{"ID", "NAME", "PROVIDER", "FEATURES", "KEY"}, rows)
			return nil
		},
	}
}
