package piiscan

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redactyl/piiscan/internal/server"
)

func init() {
	var addr string
	var budget int
	var lexers bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scans and language analysis over HTTP",
		Long: `Starts an HTTP API with four JSON endpoints:

  POST /scan-github              {owner, repo, regexPairs, fileExtensions?}
  POST /scan-directory           {directoryPath, extensionArray, regexPairs}
  POST /analyze-github-repo      {owner, repo}
  POST /analyze-local-directory  {directoryPath}`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			cwd, _ := filepath.Abs(".")
			cfgs := loadConfigs(cwd)
			client, err := cfgs.githubClient(ctx)
			if err != nil {
				return err
			}
			listen := pickString(addr, cfgs.local.Addr, cfgs.global.Addr)
			if listen == "" {
				listen = ":3000"
			}
			srv, err := server.New(server.Config{
				Addr:            listen,
				GitHub:          client,
				Budget:          cfgs.budget(budget),
				Timeout:         cfgs.timeout(),
				Workers:         cfgs.workers(),
				Table:           cfgs.table(lexers),
				DefaultExcludes: pickBool(false, cfgs.local.DefaultExcludes, cfgs.global.DefaultExcludes),
			})
			if err != nil {
				return err
			}
			cmd.PrintErrf("Listening on %s\n", listen)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :3000)")
	cmd.Flags().IntVar(&budget, "budget", 0, "GitHub API calls per /scan-github request (default 1000)")
	cmd.Flags().BoolVar(&lexers, "lexers", false, "recognize extensions outside the built-in table via syntax lexers")
	rootCmd.AddCommand(cmd)
}
