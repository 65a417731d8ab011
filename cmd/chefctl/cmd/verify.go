package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bringochef/chefctl/internal/output"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Probe the deployed service without changing anything",
	Long: `Verify resolves the deployed service's URL and runs the health and
functional probes against it. No cloud state is modified.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pipeline, cfg, err := newPipeline(cmd.Context())
		if err != nil {
			return err
		}

		output.Header(output.Bold("Verifying " + cfg.ServiceName))
		if _, err := pipeline.Verify(cmd.Context()); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	addTargetFlags(verifyCmd)
	rootCmd.AddCommand(verifyCmd)
}
