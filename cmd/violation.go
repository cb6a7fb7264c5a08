package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/powerhub/core/compliance"
	"github.com/kilianp07/powerhub/core/engine"
)

var violation compliance.Violation

var violationCmd = &cobra.Command{
	Use:   "violation",
	Short: "Tenant violation tracking",
}

var violationEscalateCmd = &cobra.Command{
	Use:   "escalate <tenant-id>",
	Short: "Record a violation and apply the escalated action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return printResult(cmd, e.EscalateViolation(ctx, args[0], violation))
		})
	},
}

var violationResetCmd = &cobra.Command{
	Use:   "reset <tenant-id>",
	Short: "Clear a tenant's violation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return printResult(cmd, e.ResetViolations(ctx, args[0], actor))
		})
	},
}

var reactivateCmd = &cobra.Command{
	Use:   "reactivate <tenant-id>",
	Short: "Reactivate a suspended or cut off tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return printResult(cmd, e.Reactivate(ctx, args[0], actor))
		})
	},
}

func init() {
	f := violationEscalateCmd.Flags()
	f.StringVar(&violation.Type, "type", "over-allocation", "violation type")
	f.StringVar(&violation.Description, "description", "", "free text description")
	f.Float64Var(&violation.MeasuredKW, "measured-kw", 0, "measured load")
	f.Float64Var(&violation.LimitKW, "limit-kw", 0, "applicable limit")
	violationCmd.AddCommand(violationEscalateCmd, violationResetCmd)
	rootCmd.AddCommand(violationCmd, reactivateCmd)
}
