package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service health",
	Long: `Checks database and redis connectivity and prints pool statistics.

Example:
  go run ./cmd/pulse status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== MarketPulse Status ===")
	fmt.Println()

	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	health, err := a.db.HealthCheck(ctx)
	if err != nil {
		fmt.Printf("❌ Database: %v\n", err)
		return err
	}
	if !health.Healthy {
		fmt.Printf("❌ Database: %s\n", health.Error)
		return fmt.Errorf("database unhealthy")
	}
	fmt.Printf("✅ Database: healthy (response time %s)\n", health.ResponseTime)

	stats := a.db.Stats()
	fmt.Printf("   Pool: %d total, %d idle, %d in use\n", stats.TotalConns, stats.IdleConns, stats.AcquiredConns)

	if a.redis != nil && a.redis.Enabled() {
		fmt.Println("✅ Redis: enabled")
	} else {
		fmt.Println("ℹ️  Redis: disabled (postgres-only mode)")
	}

	return nil
}
