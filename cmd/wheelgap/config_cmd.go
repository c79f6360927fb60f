package main

import (
	"fmt"
	"os"

	"github.com/BadgerOps/wheelgap/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage wheelgap configuration. Subcommands allow viewing the effective
configuration and scaffolding a new config file.`,
		Example: `  wheelgap config show
  wheelgap config init > wheelgap.yaml`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration in YAML format. If a config file is
loaded, shows the loaded configuration with any command-line overrides
applied.`,
		Example: `  wheelgap config show
  wheelgap config show --config /etc/wheelgap/wheelgap.yaml`,
		RunE: configShowRun,
	}
}

func configShowRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	data, err := yaml.Marshal(globalCfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println("Current Configuration:")
	fmt.Println("======================")
	fmt.Println(string(data))

	return nil
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Print a default configuration file",
		Long: `Print a default configuration to stdout, suitable for redirecting into
wheelgap.yaml and editing.`,
		Example: `  wheelgap config init > wheelgap.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(config.DefaultConfig())
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}
