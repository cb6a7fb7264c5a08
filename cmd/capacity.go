package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/engine"
	"github.com/kilianp07/powerhub/core/enforcement"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/rebalance"
)

var (
	enforceReq   enforcement.Request
	dryRun       bool
	trigger      string
	method       string
	historyHub   string
	historyType  string
	historySince time.Duration
)

var enforceCmd = &cobra.Command{
	Use:   "enforce <tenant-id> <kw>",
	Short: "Request capacity for a tenant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kw, err := parseKW(args[1])
		if err != nil {
			return err
		}
		req := enforceReq
		req.TenantID, req.RequestedKW, req.TriggeredBy = args[0], kw, actor
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return printResult(cmd, e.Enforce(ctx, req))
		})
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release <tenant-id> <kw>",
	Short: "Release capacity previously granted to a tenant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kw, err := parseKW(args[1])
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return printResult(cmd, e.Release(ctx, args[0], kw))
		})
	},
}

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance <hub-id>",
	Short: "Run a rebalance pass with the hub's active policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			opts := rebalance.Options{TriggeredBy: actor, DryRun: dryRun}
			return printResult(cmd, e.Rebalance(ctx, args[0], model.RebalanceTrigger(trigger), opts))
		})
	},
}

var allocateCmd = &cobra.Command{
	Use:   "allocate <hub-id>",
	Short: "Compute and apply allocations with an explicit method",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			opts := rebalance.Options{TriggeredBy: actor, DryRun: dryRun}
			return printResult(cmd, e.Allocate(ctx, args[0], model.AllocationMethod(method), opts))
		})
	},
}

var hubCmd = &cobra.Command{
	Use:   "hub <hub-id>",
	Short: "Show a hub and its tenants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return printResult(cmd, e.Hub(ctx, args[0]))
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the allocation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := audit.Query{HubID: historyHub, Type: audit.RecordType(historyType)}
		if historySince > 0 {
			q.Start = time.Now().Add(-historySince)
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return printResult(cmd, e.History(ctx, q))
		})
	},
}

func init() {
	enforceCmd.Flags().StringVar(&enforceReq.DeviceID, "device", "", "device drawing the capacity")
	enforceCmd.Flags().StringVar(&enforceReq.DeviceType, "device-type", "", "device type")
	enforceCmd.Flags().StringVar(&enforceReq.Purpose, "purpose", "", "purpose of the request")

	for _, c := range []*cobra.Command{rebalanceCmd, allocateCmd} {
		c.Flags().BoolVar(&dryRun, "dry-run", false, "compute without committing")
	}
	rebalanceCmd.Flags().StringVar(&trigger, "trigger", string(model.TriggerManual), "trigger: manual, scheduled, threshold or tenant-change")
	allocateCmd.Flags().StringVar(&method, "method", string(model.MethodEqualSplit), "allocation method")

	historyCmd.Flags().StringVar(&historyHub, "hub", "", "filter by hub")
	historyCmd.Flags().StringVar(&historyType, "type", "", "filter by record type")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only records newer than this duration")

	rootCmd.AddCommand(enforceCmd, releaseCmd, rebalanceCmd, allocateCmd, hubCmd, historyCmd)
}
