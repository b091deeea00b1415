package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		var status map[string]any
		if err := client.Call(cmd.Context(), "get_status", nil, &status); err != nil {
			return err
		}
		if jsonFlag {
			printJSON(status)
			return nil
		}

		printHeader("i3pm daemon")
		if active, _ := status["active_project"].(string); active != "" {
			printKV("active project", activeStyle.Render(active))
		} else {
			printKV("active project", dimStyle.Render("none"))
		}
		for _, key := range []string{"windows", "scoped_windows", "global_windows", "workspaces", "outputs", "projects", "subscribers", "uptime_seconds"} {
			if v, ok := status[key]; ok {
				printKV(key, v)
			}
		}

		var health struct {
			Healthy    bool `json:"healthy"`
			Subsystems []struct {
				Name    string `json:"name"`
				Healthy bool   `json:"healthy"`
				Detail  string `json:"detail"`
			} `json:"subsystems"`
		}
		if err := client.Call(cmd.Context(), "get_health", nil, &health); err == nil {
			fmt.Println()
			printHeader("health")
			for _, s := range health.Subsystems {
				mark := healthyStyle.Render("ok")
				if !s.Healthy {
					mark = errorStyle.Render("fail")
				}
				detail := ""
				if s.Detail != "" {
					detail = " " + dimStyle.Render(s.Detail)
				}
				fmt.Printf("  %-16s %s%s\n", s.Name, mark, detail)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
