package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"moochat/config"
	"moochat/model"
)

var configKeys = []string{
	"server_url",
	"data_directory",
	"default_model",
	"reasoning",
	"tool_calling",
	"debug",
	"credential_storage",
	"ssh_key_path",
}

func newConfigCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}
	cmd.AddCommand(newConfigShowCmd(v), newConfigSetCmd(v))
	return cmd
}

func newConfigShowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration and where it comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"settings file", config.GetSettingsFilePath()},
				{"user config", filepath.Join(cfg.DataDir(), "config.toml")},
				{"server_url", cfg.ServerURL},
				{"data_directory", cfg.DataDir()},
				{"default_model", cfg.DefaultModel},
				{"reasoning", strconv.FormatBool(cfg.Reasoning)},
				{"tool_calling", strconv.FormatBool(cfg.ToolCalling)},
				{"debug", strconv.FormatBool(cfg.Debug)},
				{"credential_storage", string(cfg.CredentialStorage)},
			}
			if cfg.SSHKeyPath != "" {
				rows = append(rows, []string{"ssh_key_path", cfg.SSHKeyPath})
			}
			if cfg.Token != "" {
				rows = append(rows, []string{"token", "from MOOCHAT_TOKEN"})
			}
			printTable(out, []string{"KEY", "VALUE"}, rows)
			return nil
		},
	}
}

func newConfigSetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting in settings.toml or config.toml",
		Long: "Change a setting. server_url and data_directory live in settings.toml,\n" +
			"everything else in <data_directory>/config.toml.\n\nKeys: " + strings.Join(configKeys, ", "),
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return configKeys, cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if !slices.Contains(configKeys, key) {
				return fmt.Errorf("unknown key %q, want one of %s", key, strings.Join(configKeys, ", "))
			}

			var path string
			var err error
			switch key {
			case "server_url", "data_directory":
				path, err = setSystemValue(key, value)
			default:
				path, err = setUserValue(key, value)
			}
			if err != nil {
				return err
			}
			// reload so that invalid combinations are reported right away
			if _, err := loadConfig(v); err != nil {
				return fmt.Errorf("saved %s, but the configuration is now invalid: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, path)
			return nil
		},
	}
}

func setSystemValue(key, value string) (string, error) {
	sys, err := config.LoadSystemConfig()
	if err != nil {
		return "", err
	}
	switch key {
	case "server_url":
		sys.ServerURL = strings.TrimRight(value, "/")
	case "data_directory":
		sys.DataDirectory = value
	}
	if err := config.SaveSystemConfig(sys); err != nil {
		return "", err
	}
	return config.GetSettingsFilePath(), nil
}

func setUserValue(key, value string) (string, error) {
	sys, err := config.LoadSystemConfig()
	if err != nil {
		return "", err
	}
	dataDir := config.ExpandPath(sys.DataDirectory)
	if dir := os.Getenv("MOOCHAT_DATA_DIR"); dir != "" {
		dataDir = config.ExpandPath(dir)
	}

	user, err := config.LoadUserConfig(dataDir)
	if err != nil {
		return "", err
	}
	switch key {
	case "default_model":
		if _, ok := model.FindModel(value); !ok {
			return "", fmt.Errorf("unknown model %q, see moochat models", value)
		}
		user.Session.DefaultModel = value
	case "reasoning", "tool_calling", "debug":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("%s takes true or false, got %q", key, value)
		}
		switch key {
		case "reasoning":
			user.Session.Reasoning = b
		case "tool_calling":
			user.Session.ToolCalling = b
		default:
			user.Debug = b
		}
	case "credential_storage":
		user.Security.CredentialStorage = value
	case "ssh_key_path":
		user.Security.SSHKeyPath = value
	}

	if err := config.SaveUserConfig(user, dataDir); err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "config.toml"), nil
}
