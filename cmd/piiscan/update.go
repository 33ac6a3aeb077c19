package piiscan

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/redactyl/piiscan/internal/update"
)

func init() {
	var checkOnly bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update piiscan to the latest release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			if checkOnly {
				abs, _ := filepath.Abs(".")
				client, err := loadConfigs(abs).githubClient(cmd.Context())
				if err != nil {
					return err
				}
				latest, newer, err := update.Checker{Releases: client}.Check(cmd.Context(), version, false)
				if err != nil {
					return err
				}
				switch {
				case newer:
					fmt.Fprintf(w, "v%s is available (running v%s)\n", latest, version)
				case latest == "":
					fmt.Fprintln(w, "Could not determine the latest release.")
				default:
					fmt.Fprintf(w, "piiscan v%s is up to date\n", version)
				}
				return nil
			}
			v, err := selfUpdate()
			if err != nil {
				return fmt.Errorf("self-update failed: %w", err)
			}
			fmt.Fprintf(w, "piiscan is at v%s\n", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkOnly, "check", false, "only report whether a newer release exists")
	rootCmd.AddCommand(cmd)
}
