package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vpittamp/i3pm/internal/state"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage and switch projects",
}

var (
	projDisplayName string
	projDirectory   string
	projIcon        string
	projAutoSave    bool
	projAutoRestore bool
	projRemoteHost  string
)

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured projects",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		var result struct {
			Projects []state.Project `json:"projects"`
			Active   string          `json:"active"`
			Usage    map[string]int  `json:"usage"`
		}
		if err := client.Call(cmd.Context(), "project.list", nil, &result); err != nil {
			return err
		}

		if jsonFlag {
			printJSON(result)
			return nil
		}
		printHeader("Projects")
		for _, p := range result.Projects {
			marker := "  "
			name := p.Name
			if p.Name == result.Active {
				marker = activeStyle.Render("* ")
				name = activeStyle.Render(name)
			}
			fmt.Printf("%s%s %s\n", marker, name, dimStyle.Render(p.Directory))
		}
		return nil
	},
}

var projectSwitchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Switch the active project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		params := map[string]string{"project_name": args[0]}
		var result map[string]string
		if err := client.Call(cmd.Context(), "set_active_project", params, &result); err != nil {
			return err
		}
		if jsonFlag {
			printJSON(result)
			return nil
		}
		fmt.Printf("switched to %s\n", activeStyle.Render(args[0]))
		return nil
	},
}

func createProject(ctx context.Context, name, remote string) error {
	client, err := dialDaemon(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	params := map[string]any{
		"name":         name,
		"display_name": projDisplayName,
		"directory":    projDirectory,
		"icon":         projIcon,
		"auto_save":    projAutoSave,
		"auto_restore": projAutoRestore,
	}
	if remote != "" {
		params["remote"] = remote
	}
	var result state.Project
	if err := client.Call(ctx, "project.create", params, &result); err != nil {
		return err
	}
	if jsonFlag {
		printJSON(result)
		return nil
	}
	fmt.Printf("created project %s (%s)\n", result.Name, result.SourceType)
	return nil
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a local project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createProject(cmd.Context(), args[0], "")
	},
}

var projectCreateRemoteCmd = &cobra.Command{
	Use:   "create-remote <name>",
	Short: "Create a project living on a remote host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if projRemoteHost == "" {
			return fmt.Errorf("--host is required")
		}
		return createProject(cmd.Context(), args[0], projRemoteHost)
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Soft-delete a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Call(cmd.Context(), "project.delete", map[string]string{"name": args[0]}, nil); err != nil {
			return err
		}
		if jsonFlag {
			printJSON(map[string]bool{"deleted": true})
			return nil
		}
		fmt.Printf("deleted project %s (kept as %s.json.deleted)\n", args[0], args[0])
		return nil
	},
}

var projectEditCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Edit a project's settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		params := map[string]any{"name": args[0]}
		if cmd.Flags().Changed("display-name") {
			params["display_name"] = projDisplayName
		}
		if cmd.Flags().Changed("icon") {
			params["icon"] = projIcon
		}
		if cmd.Flags().Changed("auto-save") {
			params["auto_save"] = projAutoSave
		}
		if cmd.Flags().Changed("auto-restore") {
			params["auto_restore"] = projAutoRestore
		}
		var result state.Project
		if err := client.Call(cmd.Context(), "project.edit", params, &result); err != nil {
			return err
		}
		if jsonFlag {
			printJSON(result)
			return nil
		}
		fmt.Printf("updated project %s\n", result.Name)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{projectCreateCmd, projectCreateRemoteCmd, projectEditCmd} {
		c.Flags().StringVar(&projDisplayName, "display-name", "", "display name shown in UIs")
		c.Flags().StringVar(&projDirectory, "directory", "", "absolute project directory")
		c.Flags().StringVar(&projIcon, "icon", "", "icon glyph")
		c.Flags().BoolVar(&projAutoSave, "auto-save", false, "auto-save layout on switch away")
		c.Flags().BoolVar(&projAutoRestore, "auto-restore", false, "auto-restore layout on switch to")
	}
	projectCreateRemoteCmd.Flags().StringVar(&projRemoteHost, "host", "", "remote host holding the project")

	projectCmd.AddCommand(projectListCmd, projectCreateCmd, projectCreateRemoteCmd,
		projectSwitchCmd, projectDeleteCmd, projectEditCmd)
	rootCmd.AddCommand(projectCmd)
}
