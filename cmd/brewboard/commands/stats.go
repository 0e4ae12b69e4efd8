package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brewop/brewboard/internal/printer"
	"github.com/brewop/brewboard/internal/reports"
)

var (
	statsDays int
	statsJSON bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show beverage totals for the last days",
	Long: `Show per-day beverage totals for the last N days, oldest first.

Days with no orders are shown as zeros. Use --json for machine-readable output.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "Number of days to include")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	totals, err := reports.NewReporter(client, loc).LastNDays(ctx, statsDays)
	if err != nil {
		return printer.Error("Failed to fetch stats", err.Error(), []string{
			fmt.Sprintf("Check that Redis is reachable at %s", cfg.Redis.Addr),
		})
	}

	if statsJSON {
		out, err := json.MarshalIndent(totals, "", "  ")
		if err != nil {
			return err
		}
		printer.Println(string(out))
		return nil
	}

	printer.Printf("%-12s %6s %8s %7s %7s\n", "DATE", "TEA", "COFFEE", "JUICE", "TOTAL")
	for _, day := range totals {
		printer.Printf("%-12s %6d %8d %7d %7d\n", day.Date, day.Tea, day.Coffee, day.Juice, day.Total)
	}

	return nil
}
