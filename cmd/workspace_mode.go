package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vpittamp/i3pm/internal/wsmode"
)

var workspaceModeCmd = &cobra.Command{
	Use:     "workspace-mode",
	Aliases: []string{"wm"},
	Short:   "Drive the modal workspace navigation state machine",
}

var wsModeEnterCmd = &cobra.Command{
	Use:       "enter <goto|move>",
	Short:     "Enter workspace mode",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"goto", "move"},
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		var st wsmode.State
		if err := client.Call(cmd.Context(), "workspace_mode.enter", map[string]string{"mode": args[0]}, &st); err != nil {
			return err
		}
		if jsonFlag {
			printJSON(st)
		}
		return nil
	},
}

var wsModeDigitCmd = &cobra.Command{
	Use:   "digit <0-9>",
	Short: "Append a digit to the accumulated input",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		var st wsmode.State
		if err := client.Call(cmd.Context(), "workspace_mode.digit", map[string]string{"digit": args[0]}, &st); err != nil {
			return err
		}
		if jsonFlag {
			printJSON(st)
		}
		return nil
	},
}

var wsModeCharCmd = &cobra.Command{
	Use:   "char <c>",
	Short: "Append a character (':' switches to project filter input)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		var st wsmode.State
		if err := client.Call(cmd.Context(), "workspace_mode.add_char", map[string]string{"char": args[0]}, &st); err != nil {
			return err
		}
		if jsonFlag {
			printJSON(st)
		}
		return nil
	},
}

var wsModeExecuteCmd = &cobra.Command{
	Use:   "execute",
	Short: "Execute the accumulated navigation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		return client.Call(cmd.Context(), "workspace_mode.execute", nil, nil)
	},
}

var wsModeCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel workspace mode without action",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		return client.Call(cmd.Context(), "workspace_mode.cancel", nil, nil)
	},
}

var wsModeStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the current workspace-mode state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		var st wsmode.State
		if err := client.Call(cmd.Context(), "workspace_mode.state", nil, &st); err != nil {
			return err
		}
		if jsonFlag {
			printJSON(st)
			return nil
		}
		if !st.Active {
			fmt.Println("inactive")
			return nil
		}
		fmt.Printf("%s: %q\n", st.ModeType, st.Accumulated)
		return nil
	},
}

var wsHistoryLimit int

var wsModeHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent workspace navigation, most recent first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		var history []wsmode.Switch
		if err := client.Call(cmd.Context(), "workspace_mode.history", map[string]int{"limit": wsHistoryLimit}, &history); err != nil {
			return err
		}
		if jsonFlag {
			printJSON(history)
			return nil
		}
		for _, sw := range history {
			fmt.Printf("%s  ws %-3d %-10s %s\n",
				sw.Timestamp.Format(time.TimeOnly), sw.WorkspaceNum, sw.OutputName, dimStyle.Render(string(sw.ModeType)))
		}
		return nil
	},
}

func init() {
	wsModeHistoryCmd.Flags().IntVar(&wsHistoryLimit, "limit", 20, "maximum entries to show")
	workspaceModeCmd.AddCommand(wsModeEnterCmd, wsModeDigitCmd, wsModeCharCmd,
		wsModeExecuteCmd, wsModeCancelCmd, wsModeStateCmd, wsModeHistoryCmd)
	rootCmd.AddCommand(workspaceModeCmd)
}
