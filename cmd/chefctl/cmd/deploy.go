package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bringochef/chefctl/internal/deploy"
	"github.com/bringochef/chefctl/internal/output"
)

var deploySummaryFile string

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the full deployment pipeline",
	Long: `Deploy runs the five-stage pipeline: validate local preconditions,
provision APIs and IAM access, push the Cloud Run service, wait for
permission propagation, and verify the deployed service.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pipeline, cfg, err := newPipeline(cmd.Context())
		if err != nil {
			return err
		}

		output.Header(output.Bold("Deploying " + cfg.ServiceName))
		summary, err := pipeline.Run(cmd.Context(), deploy.ModeRelease)
		if err != nil {
			return err
		}

		if deploySummaryFile != "" {
			if err := deploy.WriteSummaryFile(deploySummaryFile, summary); err != nil {
				return err
			}
			output.Infof("Summary written to %s", deploySummaryFile)
		}

		output.Successf("Deployment complete")
		return nil
	},
}

func init() {
	addTargetFlags(deployCmd)
	deployCmd.Flags().StringVar(&deploySummaryFile, "summary-file", "",
		"Write the run summary to this file as YAML")
	rootCmd.AddCommand(deployCmd)
}
