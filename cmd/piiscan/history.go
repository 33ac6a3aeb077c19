package piiscan

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/redactyl/piiscan/internal/audit"
	"github.com/redactyl/piiscan/internal/errs"
)

func init() {
	var path string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded scans (see scan --record)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			records, err := audit.NewAuditLog(abs).LoadHistory()
			if err != nil {
				return err
			}
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			if flagJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			tw := tablewriter.NewWriter(cmd.OutOrStdout())
			tw.Header("#", "WHEN", "SOURCE", "TARGET", "MATCHES", "NEW", "FILES")
			for i, r := range records {
				row := []string{
					strconv.Itoa(i),
					r.Timestamp.Format("2006-01-02 15:04"),
					r.Source,
					r.Target,
					strconv.Itoa(r.TotalMatches),
					strconv.Itoa(r.NewMatches),
					strconv.Itoa(r.FilesScanned),
				}
				if err := tw.Append(row); err != nil {
					return err
				}
			}
			return tw.Render()
		},
	}
	cmd.PersistentFlags().StringVarP(&path, "path", "p", ".", "directory whose history to read")
	cmd.Flags().IntVar(&limit, "limit", 20, "show at most this many records, newest first (0 = all)")

	del := &cobra.Command{
		Use:   "delete <index>",
		Short: "Delete one record by its index in the history listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return errs.Validation("index", "expected a number, got %q", args[0])
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			if err := audit.NewAuditLog(abs).DeleteRecord(idx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Record deleted.")
			return nil
		},
	}
	cmd.AddCommand(del)
	rootCmd.AddCommand(cmd)
}
