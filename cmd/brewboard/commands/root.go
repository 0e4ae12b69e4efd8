package commands

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/brewop/brewboard/internal/config"
	"github.com/brewop/brewboard/pkg/ledger"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "brewboard",
	Short: "Brewboard - office beverage order ledger and notice board",
	Long: `Brewboard tracks slot-based beverage orders and notice-board polls in a
shared Redis ledger. The CLI is the ops surface for the aggregate data:
daily dashboards, rollups over the last days, and the destructive daily
reset.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "brewboard.yml", "Path to brewboard.yml")
}

// loadConfig reads the configured brewboard.yml, falling back to built-in
// defaults when the file does not exist.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// newLedgerClient opens a ledger client for the configured instance.
// Caller is responsible for closing it.
func newLedgerClient(cfg *config.Config) (*ledger.Client, error) {
	return ledger.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Instance)
}
