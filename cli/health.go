package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const healthTimeout = 10 * time.Second

func newHealthCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, v, false)
			if err != nil {
				return err
			}
			ctx, cancel := contextWithTimeout(cmd, healthTimeout)
			defer cancel()

			start := time.Now()
			status, err := a.client.Health(ctx)
			if err != nil {
				return fmt.Errorf("%s is unreachable: %w", a.cfg.ServerURL, err)
			}
			fmt.Fprintf(a.out, "%s: %s (%s)\n", a.cfg.ServerURL, status, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
