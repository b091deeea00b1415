package layout

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Round-trip: a placeholder with marks_metadata survives serialisation
// structurally intact; one without deserialises to an absent metadata.
func TestWindowPlaceholder_RoundTrip(t *testing.T) {
	ph := WindowPlaceholder{
		Class:           "Code",
		Instance:        "code",
		TitlePattern:    "main.go - nixos",
		LaunchCommand:   "code /etc/nixos",
		Geometry:        Geometry{X: 10, Y: 20, Width: 1200, Height: 800},
		Marks:           []string{"scoped:nixos:42"},
		Floating:        true,
		CWD:             "/etc/nixos",
		AppRegistryName: "vscode",
		Focused:         true,
		RestorationMark: "scoped:nixos:42",
		MarksMetadata: &MarksMetadata{
			Project:    "nixos",
			ExtraMarks: []string{"user-mark"},
		},
	}

	data, err := json.Marshal(ph)
	require.NoError(t, err)
	var decoded WindowPlaceholder
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ph, decoded)
}

func TestWindowPlaceholder_AbsentMarksMetadata(t *testing.T) {
	data := []byte(`{"class": "btop", "geometry": {"x":0,"y":0,"width":100,"height":100}, "floating": false, "focused": false}`)
	var decoded WindowPlaceholder
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.MarksMetadata)

	// Re-serialising keeps it absent rather than null-ing it in.
	out, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "marks_metadata")
}

func TestSnapshot_RoundTrip(t *testing.T) {
	s := Snapshot{
		Version:    1,
		Project:    "nixos",
		Name:       "auto-20260801-120000",
		CapturedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Workspaces: []WorkspaceLayout{
			{Num: 1, Name: "1: web", Output: "eDP-1", Windows: []WindowPlaceholder{{Class: "firefox"}}},
			{Num: 3, Windows: []WindowPlaceholder{{Class: "btop"}, {Class: "Code"}}},
		},
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s, decoded)
}

func TestAutoSaveName(t *testing.T) {
	at := time.Date(2026, 8, 1, 9, 30, 15, 0, time.Local)
	assert.Equal(t, "auto-20260801-093015", AutoSaveName(at))
}
