package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Structure(t *testing.T) {
	expected := []string{"daemon", "project", "workspace-mode", "benchmark", "run", "status"}
	for _, name := range expected {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "missing subcommand %q", name)
	}
}

func TestProjectSubcommands(t *testing.T) {
	expected := map[string]bool{
		"list": false, "create": false, "create-remote": false,
		"switch": false, "delete": false, "edit": false,
	}
	for _, c := range projectCmd.Commands() {
		if _, ok := expected[c.Name()]; ok {
			expected[c.Name()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "missing project subcommand %q", name)
	}
}

func TestWorkspaceModeSubcommands(t *testing.T) {
	expected := map[string]bool{
		"enter": false, "digit": false, "char": false,
		"execute": false, "cancel": false, "state": false, "history": false,
	}
	for _, c := range workspaceModeCmd.Commands() {
		if _, ok := expected[c.Name()]; ok {
			expected[c.Name()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "missing workspace-mode subcommand %q", name)
	}
}

func TestPersistentFlags(t *testing.T) {
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("debug"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("json"))
}

func TestErrorPayload(t *testing.T) {
	payload := errorPayload(assert.AnError)
	assert.NotEmpty(t, payload["message"])
	assert.NotNil(t, payload["code"])
}
