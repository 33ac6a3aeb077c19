package piiscan

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/redactyl/piiscan/internal/engine"
	"github.com/redactyl/piiscan/internal/report"
)

func init() {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage baselines",
	}

	var path, output, ext string
	update := &cobra.Command{
		Use:   "update",
		Short: "Record every current match so later scans only report new ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			cfgs := loadConfigs(abs)
			set, err := cfgs.patternSet(nil, "")
			if err != nil {
				return err
			}
			exts := engine.NewExtensionSet(cfgs.extensions(ext)...)
			out, _, err := scanDir(cmd.Context(), cfgs, abs, exts, set, func(string) bool { return false })
			if err != nil {
				return err
			}
			dest := output
			if !filepath.IsAbs(dest) {
				dest = filepath.Join(abs, dest)
			}
			if err := report.SaveBaseline(dest, out.Vulnerabilities); err != nil {
				return err
			}
			n := 0
			for _, r := range out.Vulnerabilities {
				n += r.Count()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Baseline updated: %d occurrence(s) in %s\n", n, dest)
			return nil
		},
	}
	update.Flags().StringVarP(&path, "path", "p", ".", "directory to scan")
	update.Flags().StringVar(&output, "output", defaultBaseline, "baseline file, relative to the scanned directory")
	update.Flags().StringVar(&ext, "ext", "", "comma-separated extensions to scan (default: all files)")

	rootCmd.AddCommand(cmd)
	cmd.AddCommand(update)
}
