package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Run daemon performance probes",
}

var benchSamples int

// benchmarkEnvironCmd exercises the /proc environment reader against the
// latency contract. Exit codes: 0 PASS, 1 FAIL, 2 error.
var benchmarkEnvironCmd = &cobra.Command{
	Use:   "environ",
	Short: "Benchmark /proc environment reads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			printError(err)
			os.Exit(exitUsage)
		}
		defer client.Close()

		var result struct {
			Samples   int     `json:"samples"`
			AverageMs float64 `json:"average_ms"`
			P95Ms     float64 `json:"p95_ms"`
			TotalMs   float64 `json:"total_ms"`
			Status    string  `json:"status"`
			Available bool    `json:"tier1_available"`
		}
		params := map[string]int{"samples": benchSamples}
		if err := client.Call(cmd.Context(), "benchmark.environ", params, &result); err != nil {
			printError(err)
			os.Exit(exitUsage)
		}

		if jsonFlag {
			printJSON(result)
		} else {
			printHeader("environ benchmark")
			printKV("samples", result.Samples)
			printKV("average", fmt.Sprintf("%.3f ms", result.AverageMs))
			printKV("p95", fmt.Sprintf("%.3f ms", result.P95Ms))
			printKV("total", fmt.Sprintf("%.1f ms", result.TotalMs))
			if result.Status == "PASS" {
				fmt.Println(healthyStyle.Render("PASS"))
			} else {
				fmt.Println(errorStyle.Render("FAIL"))
			}
		}

		if result.Status != "PASS" {
			os.Exit(exitError)
		}
		return nil
	},
}

func init() {
	benchmarkEnvironCmd.Flags().IntVar(&benchSamples, "samples", 100, "number of reads to sample")
	benchmarkCmd.AddCommand(benchmarkEnvironCmd)
	rootCmd.AddCommand(benchmarkCmd)
}
