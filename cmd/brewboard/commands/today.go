package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brewop/brewboard/internal/printer"
	"github.com/brewop/brewboard/internal/reports"
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's beverage counters",
	RunE:  runToday,
}

func init() {
	rootCmd.AddCommand(todayCmd)
}

func runToday(cmd *cobra.Command, args []string) error {
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

	counts, err := reports.NewReporter(client, loc).Today(ctx)
	if err != nil {
		return printer.Error("Failed to fetch today's counters", err.Error(), []string{
			fmt.Sprintf("Check that Redis is reachable at %s", cfg.Redis.Addr),
		})
	}

	printer.Printf("tea: %d  coffee: %d  juice: %d  (total %d)\n",
		counts.Tea, counts.Coffee, counts.Juice, counts.Total())

	return nil
}
