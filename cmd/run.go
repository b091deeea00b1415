package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runSummon bool
	runHide   bool
	runNoHide bool
	runForce  bool
)

// runCmd launches (or summons) a registered application through the
// daemon, so the resulting window correlates with the launch intent.
var runCmd = &cobra.Command{
	Use:   "run <app>",
	Short: "Launch or summon a registered application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runHide && runNoHide {
			return fmt.Errorf("--hide and --nohide are mutually exclusive")
		}

		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		if args[0] == "terminal" {
			// The scratchpad terminal has its own lifecycle.
			var result map[string]any
			method := "scratchpad.toggle"
			if runForce {
				method = "scratchpad.launch"
			}
			if err := client.Call(cmd.Context(), method, nil, &result); err != nil {
				return err
			}
			if jsonFlag {
				printJSON(result)
			}
			return nil
		}

		params := map[string]any{
			"app":    args[0],
			"summon": runSummon,
			"hide":   runHide,
			"nohide": runNoHide,
			"force":  runForce,
		}
		var result map[string]any
		if err := client.Call(cmd.Context(), "run_app", params, &result); err != nil {
			return err
		}
		if jsonFlag {
			printJSON(result)
			return nil
		}
		fmt.Printf("launched %s\n", args[0])
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runSummon, "summon", false, "focus the existing window instead of launching")
	runCmd.Flags().BoolVar(&runHide, "hide", false, "hide the window after launch")
	runCmd.Flags().BoolVar(&runNoHide, "nohide", false, "never hide the window")
	runCmd.Flags().BoolVar(&runForce, "force", false, "launch even when already running")
	rootCmd.AddCommand(runCmd)
}
