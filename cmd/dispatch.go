package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kilianp07/powerhub/core/engine"
	"github.com/kilianp07/powerhub/core/model"
)

var (
	claimStart    string
	claimDuration time.Duration
	claimSource   string
)

var vppCmd = &cobra.Command{
	Use:   "vpp",
	Short: "Virtual power plant coordination",
}

var vppResolveCmd = &cobra.Command{
	Use:   "resolve <hub-id> <tenant-id> <kw>",
	Short: "Resolve a dispatch claim against a tenant's load",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		kw, err := parseKW(args[2])
		if err != nil {
			return err
		}
		w, err := claimWindow()
		if err != nil {
			return err
		}
		claim := model.DispatchClaim{ID: uuid.NewString(), Start: w.Start, End: w.End, RequestedKW: kw, Source: claimSource}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return printResult(cmd, e.ResolveConflict(ctx, args[0], args[1], claim))
		})
	},
}

var vppReadinessCmd = &cobra.Command{
	Use:   "readiness <hub-id>",
	Short: "Assess whether a hub can take part in a dispatch window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := claimWindow()
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return printResult(cmd, e.AssessReadiness(ctx, args[0], w))
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{vppResolveCmd, vppReadinessCmd} {
		c.Flags().StringVar(&claimStart, "start", "", "window start (RFC3339, default now)")
		c.Flags().DurationVar(&claimDuration, "duration", time.Hour, "window length")
	}
	vppResolveCmd.Flags().StringVar(&claimSource, "source", "cli", "dispatch source")
	vppCmd.AddCommand(vppResolveCmd, vppReadinessCmd)
	rootCmd.AddCommand(vppCmd)
}

func claimWindow() (model.Window, error) {
	start := time.Now().UTC()
	if claimStart != "" {
		t, err := time.Parse(time.RFC3339, claimStart)
		if err != nil {
			return model.Window{}, fmt.Errorf("invalid start: %w", err)
		}
		start = t
	}
	return model.Window{Start: start, End: start.Add(claimDuration)}, nil
}

func parseKW(s string) (float64, error) {
	kw, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid kW value %q: %w", s, err)
	}
	return kw, nil
}
