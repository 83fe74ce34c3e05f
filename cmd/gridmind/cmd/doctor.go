package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridmind/gridmind/internal/config"
	"github.com/gridmind/gridmind/internal/diagnostics"
)

var doctorShowMetrics bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and external service reachability",
	Long:  "Verify the configuration, credentials, and provider endpoints gridmind depends on.",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorShowMetrics, "metrics", false, "also print host resource usage")
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	// Doctor reports configuration problems as check results rather than
	// refusing to run, so load without validating.
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	fmt.Println("Checking environment...")
	fmt.Println()

	results := diagnostics.NewDoctor(cfg).Run(cmd.Context())
	for _, r := range results {
		icon := "✓"
		switch r.Status {
		case diagnostics.StatusWarning:
			icon = "⚠"
		case diagnostics.StatusError:
			icon = "✗"
		}
		fmt.Printf("  %s %s: %s\n", icon, r.Name, r.Message)
	}
	fmt.Println()

	if doctorShowMetrics {
		printMetrics()
	}

	if !diagnostics.Healthy(results) {
		return fmt.Errorf("environment check failed")
	}
	fmt.Println("Environment looks healthy")
	return nil
}

func printMetrics() {
	collector := diagnostics.NewSystemMetricsCollector()
	m := collector.Collect()

	fmt.Println("Host resources:")
	fmt.Printf("  cpu:    %s (%d cores, %d threads)\n", m.CPUModel, m.CPUCores, m.CPUThreads)
	fmt.Printf("  memory: %.0f / %.0f MB (%.1f%%)\n", m.MemUsedMB, m.MemTotalMB, m.MemPercent)
	fmt.Printf("  disk:   %.1f / %.1f GB (%.1f%%)\n", m.DiskUsedGB, m.DiskTotalGB, m.DiskPercent)
	fmt.Printf("  load:   %.2f %.2f %.2f\n", m.LoadAvg1, m.LoadAvg5, m.LoadAvg15)
	for _, gpu := range m.GPUInfos {
		fmt.Printf("  gpu:    %s\n", gpu.Name)
	}
	fmt.Println()
}
