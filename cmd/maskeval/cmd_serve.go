package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pavise/maskeval/internal/projectconfig"
	"github.com/pavise/maskeval/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var (
		port        int
		resultsDir  string
		noBrowser   bool
		corsOrigins []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local results dashboard",
		Long: `Start a local HTTP server that serves saved evaluation reports.

Exposes a JSON API over the report files in the results directory:
  GET /api/health              Server health
  GET /api/reports             List available reports
  GET /api/reports/{name}      Full report JSON

Defaults come from .maskeval.yaml when present. The dashboard URL is
opened in the default browser unless --no-browser is set. The server
binds to localhost only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pc := loadProjectConfig(".")
			if !cmd.Flags().Changed("port") && pc.Server.Port != 0 {
				port = pc.Server.Port
			}
			if !cmd.Flags().Changed("results-dir") && pc.Server.ResultsDir != "" {
				resultsDir = pc.Server.ResultsDir
			}

			srv, err := webserver.New(webserver.Config{
				Port:           port,
				ResultsDir:     resultsDir,
				NoBrowser:      noBrowser,
				AllowedOrigins: corsOrigins,
				Logger:         slog.Default(),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", projectconfig.DefaultServerPort, "Port to listen on")
	cmd.Flags().StringVar(&resultsDir, "results-dir", projectconfig.DefaultServerResultsDir, "Directory containing report JSON files")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the dashboard in a browser")
	cmd.Flags().StringArrayVar(&corsOrigins, "cors-origin", nil, "Additional allowed CORS origin (repeatable)")

	return cmd
}
