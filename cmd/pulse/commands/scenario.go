package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/scenario"
)

// scenarioCmd represents the scenario command
var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Manage test scenarios",
	Long: `Creates and drives test scenarios: isolated, tagged runs of the
pipeline over synthetic data. Scenario records never mix with
production records and are removed wholesale on delete.

Subcommands:
  create    - register a scenario
  generate  - synthesize tagged test data
  run       - execute one tier
  list      - list scenarios
  export    - dump a scenario and its records as JSON
  archive   - freeze a scenario read-only
  delete    - remove a scenario and all its records

Example:
  go run ./cmd/pulse scenario create "bull run" --inject signal-detection
  go run ./cmd/pulse scenario generate <id> --count 50
  go run ./cmd/pulse scenario run <id> --tier evaluation`,
}

var (
	scenarioInject   []string
	scenarioDataType string
	scenarioCount    int
	scenarioSeed     int64
	scenarioBullish  float64
	scenarioBearish  float64
	scenarioNeutral  float64
	scenarioTier     string

	scenarioCreateCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Register a scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenarioCreate,
	}

	scenarioGenerateCmd = &cobra.Command{
		Use:   "generate [scenario_id]",
		Short: "Synthesize tagged test data",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenarioGenerate,
	}

	scenarioRunCmd = &cobra.Command{
		Use:   "run [scenario_id]",
		Short: "Execute one tier",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenarioRun,
	}

	scenarioListCmd = &cobra.Command{
		Use:   "list",
		Short: "List scenarios",
		RunE:  runScenarioList,
	}

	scenarioExportCmd = &cobra.Command{
		Use:   "export [scenario_id]",
		Short: "Dump a scenario and its records as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenarioExport,
	}

	scenarioArchiveCmd = &cobra.Command{
		Use:   "archive [scenario_id]",
		Short: "Freeze a scenario read-only",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenarioArchive,
	}

	scenarioDeleteCmd = &cobra.Command{
		Use:   "delete [scenario_id]",
		Short: "Remove a scenario and all its records",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenarioDelete,
	}
)

func init() {
	rootCmd.AddCommand(scenarioCmd)
	scenarioCmd.AddCommand(scenarioCreateCmd)
	scenarioCmd.AddCommand(scenarioGenerateCmd)
	scenarioCmd.AddCommand(scenarioRunCmd)
	scenarioCmd.AddCommand(scenarioListCmd)
	scenarioCmd.AddCommand(scenarioExportCmd)
	scenarioCmd.AddCommand(scenarioArchiveCmd)
	scenarioCmd.AddCommand(scenarioDeleteCmd)

	// Flags
	scenarioCreateCmd.Flags().StringSliceVar(&scenarioInject, "inject", nil, "injection points (signal-detection|prediction-generation|evaluation)")
	scenarioGenerateCmd.Flags().StringVar(&scenarioDataType, "data-type", "", "sources|signals|predictors (default: by injection point)")
	scenarioGenerateCmd.Flags().IntVar(&scenarioCount, "count", 0, "record count (default 20)")
	scenarioGenerateCmd.Flags().Int64Var(&scenarioSeed, "seed", 0, "generator seed (0 = random)")
	scenarioGenerateCmd.Flags().Float64Var(&scenarioBullish, "bullish", 0, "bullish share of generated records")
	scenarioGenerateCmd.Flags().Float64Var(&scenarioBearish, "bearish", 0, "bearish share of generated records")
	scenarioGenerateCmd.Flags().Float64Var(&scenarioNeutral, "neutral", 0, "neutral share of generated records")
	scenarioRunCmd.Flags().StringVar(&scenarioTier, "tier", "", "tier to run (default: first injection point)")
}

func runScenarioCreate(cmd *cobra.Command, args []string) error {
	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sc, err := a.harness.Create(cmd.Context(), args[0], scenarioInject)
	if err != nil {
		return fmt.Errorf("create scenario: %w", err)
	}

	fmt.Printf("✅ Scenario created\n")
	printScenario(sc)
	return nil
}

func runScenarioGenerate(cmd *cobra.Command, args []string) error {
	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	params := scenario.GenerateParams{
		DataType: scenarioDataType,
		Count:    scenarioCount,
		Seed:     scenarioSeed,
	}
	if scenarioBullish > 0 || scenarioBearish > 0 || scenarioNeutral > 0 {
		params.Sentiment = contracts.SentimentDistribution{
			Bullish: scenarioBullish,
			Bearish: scenarioBearish,
			Neutral: scenarioNeutral,
		}
	}

	sc, err := a.harness.Generate(cmd.Context(), args[0], params)
	if err != nil {
		return fmt.Errorf("generate data: %w", err)
	}

	fmt.Printf("✅ Generated %d records\n", sc.GeneratedRecords)
	return nil
}

func runScenarioRun(cmd *cobra.Command, args []string) error {
	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var tier contracts.Stage
	if scenarioTier != "" {
		tier, err = contracts.ParseStage(scenarioTier)
		if err != nil {
			return err
		}
	} else {
		sc, err := a.harness.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
		if len(sc.InjectionPoints) == 0 {
			return fmt.Errorf("scenario has no injection points; pass --tier")
		}
		tier = sc.InjectionPoints[0]
	}

	sc, err := a.harness.Run(cmd.Context(), args[0], tier)
	if err != nil {
		return fmt.Errorf("run scenario: %w", err)
	}

	printScenario(sc)
	return nil
}

func runScenarioList(cmd *cobra.Command, args []string) error {
	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	scenarios, err := a.harness.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list scenarios: %w", err)
	}

	if len(scenarios) == 0 {
		fmt.Println("No scenarios")
		return nil
	}
	for i := range scenarios {
		printScenario(&scenarios[i])
		fmt.Println()
	}
	return nil
}

func runScenarioExport(cmd *cobra.Command, args []string) error {
	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.harness.ExportScenario(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("export scenario: %w", err)
	}

	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

func runScenarioArchive(cmd *cobra.Command, args []string) error {
	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sc, err := a.harness.Archive(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("archive scenario: %w", err)
	}

	fmt.Printf("✅ Scenario archived\n")
	printScenario(sc)
	return nil
}

func runScenarioDelete(cmd *cobra.Command, args []string) error {
	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.harness.Cleanup(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete scenario: %w", err)
	}

	fmt.Println("✅ Scenario and all tagged records removed")
	return nil
}

func printScenario(sc *contracts.TestScenario) {
	fmt.Printf("📋 %s\n", sc.Name)
	fmt.Printf("   ID: %s\n", sc.ID)
	fmt.Printf("   Status: %s\n", sc.Status)
	fmt.Printf("   Injection points: %v\n", sc.InjectionPoints)
	fmt.Printf("   Generated records: %d\n", sc.GeneratedRecords)
	if sc.LastError != "" {
		fmt.Printf("   Last error: %s\n", sc.LastError)
	}
}
