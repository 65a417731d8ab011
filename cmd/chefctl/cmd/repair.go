package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bringochef/chefctl/internal/deploy"
	"github.com/bringochef/chefctl/internal/output"
)

var repairSummaryFile string

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Repair the deployed service's permissions",
	Long: `Repair re-provisions APIs and IAM access, rolls a new revision of the
existing service so it picks up the repaired permissions, waits for
propagation, and verifies the result. Local agent sources are not required.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pipeline, cfg, err := newPipeline(cmd.Context())
		if err != nil {
			return err
		}

		output.Header(output.Bold("Repairing permissions for " + cfg.ServiceName))
		summary, err := pipeline.Run(cmd.Context(), deploy.ModeRepair)
		if err != nil {
			return err
		}

		if repairSummaryFile != "" {
			if err := deploy.WriteSummaryFile(repairSummaryFile, summary); err != nil {
				return err
			}
			output.Infof("Summary written to %s", repairSummaryFile)
		}

		output.Successf("Repair complete")
		return nil
	},
}

func init() {
	addTargetFlags(repairCmd)
	repairCmd.Flags().StringVar(&repairSummaryFile, "summary-file", "",
		"Write the run summary to this file as YAML")
	rootCmd.AddCommand(repairCmd)
}
