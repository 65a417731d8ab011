package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/bringochef/chefctl/internal/agentstub"
	"github.com/bringochef/chefctl/internal/output"
)

var stubAgentAddr string

const stubShutdownGrace = 5 * time.Second

var stubAgentCmd = &cobra.Command{
	Use:   "stub-agent",
	Short: "Run a local stand-in for the agent's HTTP surface",
	Long: `Stub-agent serves the agent's /health and /run_sse endpoints locally,
so the verification probes can be exercised without a deployed service.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		srv := &http.Server{
			Addr:              stubAgentAddr,
			Handler:           agentstub.NewRouter(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			output.Infof("Stub agent listening on %s", stubAgentAddr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-cmd.Context().Done():
			slog.Info("shutting down stub agent")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), stubShutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	stubAgentCmd.Flags().StringVar(&stubAgentAddr, "addr", ":8080", "Listen address")
	rootCmd.AddCommand(stubAgentCmd)
}
