package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencode-ai/pbd/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configInitForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pbd configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		} else {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path = filepath.Join(dir, config.DefaultConfigName+".yaml")
		}
		if err := config.WriteDefault(path, configInitForce); err != nil {
			return err
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return writeJSON(os.Stdout, map[string]string{"path": path})
		}
		fmt.Fprintf(os.Stdout, "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configOrDefault()
		if IsJSONOutput() || IsJSONLOutput() {
			return writeJSON(os.Stdout, cfg)
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}
