package piiscan

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/redactyl/piiscan/internal/errs"
)

func init() {
	var patternsFile string
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the patterns a scan would use",
		Long:  "Lists the active patterns: --patterns-file, else the patterns section of the local or global config, else the built-in PII set.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			abs, _ := filepath.Abs(".")
			set, err := loadConfigs(abs).patternSet(nil, patternsFile)
			if err != nil {
				return err
			}
			if flagJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(set.Pairs())
			}
			tw := tablewriter.NewWriter(cmd.OutOrStdout())
			tw.Header("CATEGORY", "PATTERN")
			for _, p := range set.Patterns() {
				if err := tw.Append([]string{p.Category, p.Source}); err != nil {
					return err
				}
			}
			return tw.Render()
		},
	}
	cmd.PersistentFlags().StringVar(&patternsFile, "patterns-file", "", "YAML or JSON mapping of category to regex")

	test := &cobra.Command{
		Use:   "test <category>",
		Short: "Run one pattern against text from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, _ := filepath.Abs(".")
			set, err := loadConfigs(abs).patternSet(nil, patternsFile)
			if err != nil {
				return err
			}
			p, ok := set.Lookup(args[0])
			if !ok {
				return errs.Validation("category", "unknown category %q (available: %s)", args[0], strings.Join(set.Categories(), ", "))
			}
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			matches := p.FindAll(string(data))
			w := cmd.OutOrStdout()
			for _, m := range matches {
				fmt.Fprintln(w, m)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d match(es) for %s\n", len(matches), p.Category)
			return nil
		},
	}
	cmd.AddCommand(test)
	rootCmd.AddCommand(cmd)
}
