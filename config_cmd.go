package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/pdmq/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE:  runConfigPath,
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	if cc.Cfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(cc.Out)
		enc.SetIndent("", "  ")

		return enc.Encode(cc.Cfg)
	}

	return config.RenderEffective(cc.Cfg, cc.Out)
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	cc := mustCLIContext(cmd.Context())
	path := configPath(cc.Flags)

	if err := config.WriteTemplate(path, force); err != nil {
		return err
	}

	cc.Logger.Info("config file written", "path", path)
	cc.Statusf("Wrote %s\n", path)

	return nil
}

// runConfigPath prints where the config file is looked up, following the
// same precedence as loading: --config, then PDMQ_CONFIG, then the default.
func runConfigPath(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	_, err := fmt.Fprintln(cc.Out, configPath(cc.Flags))

	return err
}

func configPath(flags CLIFlags) string {
	if flags.ConfigPath != "" {
		return flags.ConfigPath
	}

	if env := config.ReadEnvOverrides().ConfigPath; env != "" {
		return env
	}

	return config.DefaultConfigPath()
}
