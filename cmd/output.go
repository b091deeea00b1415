package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Styles for human-readable output. JSON mode bypasses all of this.
var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	healthyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// printJSON writes a single machine-readable object to stdout.
func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printHeader(text string) {
	fmt.Println(headerStyle.Render(text))
}

func printKV(key string, value any) {
	fmt.Printf("  %s %v\n", dimStyle.Render(key+":"), value)
}
