package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/subtest-dev/subtest/internal/config"
	clierrors "github.com/subtest-dev/subtest/internal/errors"
	"github.com/subtest-dev/subtest/internal/output"
)

func newConfigCmd(out *output.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View and modify subtest configuration settings.`,
	}

	cmd.AddCommand(newConfigListCmd(out))
	cmd.AddCommand(newConfigGetCmd(out))
	cmd.AddCommand(newConfigSetCmd(out))

	return cmd
}

func newConfigListCmd(out *output.Writer) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Long:  `Display all configuration settings and their current values.`,
		Example: `  subtest config list
  subtest config list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			settings := flattenSettings("", cfg.All())

			if jsonOutput {
				return out.PrintJSON(cfg.All())
			}

			keys := make([]string, 0, len(settings))
			for key := range settings {
				keys = append(keys, key)
			}

			sort.Strings(keys)

			for _, key := range keys {
				out.Print("%s = %v\n", key, settings[key])
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

// flattenSettings turns viper's nested sections into dotted keys.
func flattenSettings(prefix string, settings map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{})

	for key, value := range settings {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}

		if nested, ok := value.(map[string]interface{}); ok {
			for k, v := range flattenSettings(full, nested) {
				flat[k] = v
			}
			continue
		}

		flat[full] = value
	}

	return flat
}

func newConfigGetCmd(out *output.Writer) *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Long:    `Retrieve and display the current value of a single configuration key.`,
		Example: `  subtest config get exec.timeout`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := config.Load().Get(key)

			if value == nil {
				out.Muted("%s is not set", key)
				return nil
			}

			out.Print("%s = %v\n", key, value)

			return nil
		},
	}
}

func newConfigSetCmd(out *output.Writer) *cobra.Command {
	return &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Set a configuration value",
		Long:    `Set a configuration key to the given value. The value is persisted to the config file.`,
		Example: `  subtest config set exec.timeout 30s`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			if err := config.Load().Set(key, value); err != nil {
				return clierrors.ConfigFailed("set config", err)
			}

			out.Success("Set %s = %s", key, value)

			return nil
		},
	}
}
