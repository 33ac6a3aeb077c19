package piiscan

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/git"
	"github.com/redactyl/piiscan/internal/language"
	"github.com/redactyl/piiscan/internal/report"
	"github.com/redactyl/piiscan/internal/types"
)

func init() {
	var path, repo string
	var lexers bool
	cmd := &cobra.Command{
		Use:   "languages",
		Short: "Show the language composition of a directory or GitHub repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			cfgs := loadConfigs(abs)
			ctx, cancel := withTimeout(ctx, cfgs.timeout())
			defer cancel()

			var stats types.LanguageStats
			if repo != "" {
				owner, name, ok := git.SplitRepo(repo)
				if !ok {
					return errs.Validation("repo", "expected owner/name, got %q", repo)
				}
				client, err := cfgs.githubClient(ctx)
				if err != nil {
					return err
				}
				stats, err = language.AnalyzeRemote(ctx, client, owner, name)
				if err != nil {
					return errs.Deadline(ctx, err)
				}
			} else {
				stats, err = language.AnalyzeLocal(ctx, abs, cfgs.table(lexers), slog.Default())
				if err != nil {
					return errs.Deadline(ctx, err)
				}
			}

			if flagJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			report.PrintLanguages(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", ".", "directory to analyze")
	cmd.Flags().StringVar(&repo, "repo", "", "analyze a GitHub repository (owner/name)")
	cmd.Flags().BoolVar(&lexers, "lexers", false, "recognize extensions outside the built-in table via syntax lexers")
	rootCmd.AddCommand(cmd)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
