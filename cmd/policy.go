package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/powerhub/core/engine"
	"github.com/kilianp07/powerhub/core/model"
)

var override bool

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Capacity policy lifecycle",
}

var policySaveCmd = &cobra.Command{
	Use:   "save <file.yaml>",
	Short: "Create or update a policy from a YAML document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read policy: %w", err)
		}
		var p model.CapacityPolicy
		if err := yaml.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("parse policy: %w", err)
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			if p.ID != "" {
				if cur, err := e.Store().Policy(ctx, p.ID); err == nil {
					p.Version = cur.Version
				}
			}
			return printResult(cmd, e.SavePolicy(ctx, p))
		})
	},
}

var policyApplyCmd = &cobra.Command{
	Use:   "apply <hub-id> <policy-id>",
	Short: "Activate a policy on a hub",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return printResult(cmd, e.ApplyPolicy(ctx, args[0], args[1], override, actor))
		})
	},
}

var policyDeactivateCmd = &cobra.Command{
	Use:   "deactivate <policy-id>",
	Short: "Deactivate a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return printResult(cmd, e.DeactivatePolicy(ctx, args[0], actor))
		})
	},
}

var policyArchiveCmd = &cobra.Command{
	Use:   "archive <policy-id>",
	Short: "Archive a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return printResult(cmd, e.ArchivePolicy(ctx, args[0], actor))
		})
	},
}

func init() {
	policyApplyCmd.Flags().BoolVar(&override, "override", false, "deactivate any other active policy of the hub")
	policyCmd.AddCommand(policySaveCmd, policyApplyCmd, policyDeactivateCmd, policyArchiveCmd)
	rootCmd.AddCommand(policyCmd)
}
