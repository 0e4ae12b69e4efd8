package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/brewop/brewboard/internal/orders"
	"github.com/brewop/brewboard/internal/printer"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset today's counters to zero (destructive)",
	Long: `Reset today's aggregate to zero counters and an empty stamp list.

This is a destructive last-writer-wins overwrite: an order committing at the
same instant may be wiped from the counters (its order record survives).
Requires --force.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Actually perform the reset")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetForce {
		return printer.Error("Refusing to reset without --force",
			"Resetting wipes today's counters and duplicate-check stamps for every user.",
			[]string{"Re-run with --force if you really mean it"})
	}

	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := newLedgerClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	bounds, err := cfg.Boundaries()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	engine := orders.NewEngine(client, bounds, loc, cfg.Transactions.Attempts)
	if err := engine.ResetToday(ctx); err != nil {
		return printer.Error("Failed to reset today's counters", err.Error(), nil)
	}

	printer.Success("Today's counters reset to zero\n")
	return nil
}
