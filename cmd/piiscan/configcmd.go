package piiscan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/redactyl/piiscan/internal/config"
)

func init() {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	rootCmd.AddCommand(cfgCmd)

	var output string
	var global, force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented .piiscan.yml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest := output
			if global {
				dest = config.GlobalPath()
				if dest == "" {
					return fmt.Errorf("no config directory available")
				}
				if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
					return err
				}
			}
			if _, err := os.Stat(dest); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
			}
			if err := os.WriteFile(dest, []byte(config.Template), 0644); err != nil {
				return err
			}
			if _, err := config.LoadFile(dest); err != nil {
				return fmt.Errorf("generated config does not parse: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", dest)
			return nil
		},
	}
	initCmd.Flags().StringVar(&output, "output", ".piiscan.yml", "output file path")
	initCmd.Flags().BoolVar(&global, "global", false, "write the global config instead")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)
}
