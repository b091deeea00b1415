// Package wsmode implements the modal workspace-mode keyboard state
// machine: digit accumulation for goto/move navigation, the `:` project
// filter, and the navigation history ring.
package wsmode

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/ipc"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/state"
)

// ModeType is how the user is navigating.
type ModeType string

const (
	ModeGoto    ModeType = "goto"
	ModeMove    ModeType = "move"
	ModeProject ModeType = "project"
)

// InputType routes key input: digits accumulate a workspace number until
// `:` switches the session to project-filter input.
type InputType string

const (
	InputDigit   InputType = "digit"
	InputProject InputType = "project"
)

// State is the current workspace-mode session (in-memory only, never
// persisted).
type State struct {
	Active      bool              `json:"active"`
	ModeType    ModeType          `json:"mode_type,omitempty"`
	Accumulated string            `json:"accumulated"`
	InputType   InputType         `json:"input_type,omitempty"`
	EnteredAt   time.Time         `json:"entered_at,omitzero"`
	OutputCache map[string]string `json:"output_cache,omitempty"`
}

// Event is the broadcast payload emitted on every transition.
type Event struct {
	EventType   string   `json:"event_type"` // enter, digit, char, nav, delete, execute, cancel, project_mode_filter
	ModeActive  bool     `json:"mode_active"`
	ModeType    ModeType `json:"mode_type,omitempty"`
	Accumulated string   `json:"accumulated"`
	Direction   string   `json:"direction,omitempty"`
	Workspace   int      `json:"workspace,omitempty"`
	Filter      string   `json:"filter,omitempty"`
	Timestamp   int64    `json:"timestamp"`
}

// Switch is one historical navigation record.
type Switch struct {
	WorkspaceNum int       `json:"workspace_num"`
	OutputName   string    `json:"output_name"`
	Timestamp    time.Time `json:"timestamp"`
	ModeType     ModeType  `json:"mode_type"`
}

// HistorySink durably appends executed switches (sqlite-backed in the
// daemon, nil in tests).
type HistorySink interface {
	Append(workspaceNum int, outputName, modeType string, at time.Time) error
}

// Emitter receives transition events for broadcast.
type Emitter func(ctx context.Context, ev Event)

// Machine is the workspace-mode state machine.
type Machine struct {
	mu      sync.Mutex
	state   State
	history *historyRing

	conn ipc.Conn
	emit Emitter
	sink HistorySink
	now  func() time.Time

	// currentOutput resolves the focused output for history records.
	currentOutput func(ctx context.Context) string
}

// Config wires the machine.
type Config struct {
	Conn            ipc.Conn
	Emit            Emitter
	Sink            HistorySink
	HistoryCapacity int
	CurrentOutput   func(ctx context.Context) string
}

// NewMachine creates an inactive machine.
func NewMachine(cfg Config) *Machine {
	if cfg.HistoryCapacity < 1 {
		cfg.HistoryCapacity = 100
	}
	m := &Machine{
		history:       newHistoryRing(cfg.HistoryCapacity),
		conn:          cfg.Conn,
		emit:          cfg.Emit,
		sink:          cfg.Sink,
		now:           time.Now,
		currentOutput: cfg.CurrentOutput,
	}
	if m.emit == nil {
		m.emit = func(context.Context, Event) {}
	}
	return m
}

// Enter activates the mode for goto or move navigation.
func (m *Machine) Enter(ctx context.Context, mode ModeType, outputCache map[string]string) error {
	if mode != ModeGoto && mode != ModeMove {
		return errdefs.Validation(errdefs.CodeUnknownEnum, "unknown workspace mode %q", mode)
	}
	m.mu.Lock()
	m.state = State{
		Active:      true,
		ModeType:    mode,
		Accumulated: "",
		InputType:   InputDigit,
		EnteredAt:   m.now(),
		OutputCache: outputCache,
	}
	st := m.state
	m.mu.Unlock()

	log.Debug(log.CatWSMode, "mode entered", "mode", mode)
	m.emitState(ctx, "enter", st)
	return nil
}

// Digit appends a digit. In project-filter input the digit goes to the
// filter instead of the workspace number.
func (m *Machine) Digit(ctx context.Context, d string) error {
	if len(d) != 1 || d[0] < '0' || d[0] > '9' {
		return errdefs.Validation(errdefs.CodeValidationFailed, "digit must be a single character 0-9, got %q", d)
	}
	m.mu.Lock()
	if !m.state.Active {
		m.mu.Unlock()
		return errdefs.Validation(errdefs.CodeValidationFailed, "workspace mode not active").
			WithSuggestion("enter the mode with 'i3pm workspace-mode enter goto'")
	}
	m.state.Accumulated += d
	st := m.state
	m.mu.Unlock()

	m.emitState(ctx, "digit", st)
	return nil
}

// AddChar handles non-digit input. A colon switches to project-filter
// input; later characters append to the filter.
func (m *Machine) AddChar(ctx context.Context, c string) error {
	if c == "" {
		return errdefs.Validation(errdefs.CodeMissingParam, "char is required")
	}
	m.mu.Lock()
	if !m.state.Active {
		m.mu.Unlock()
		return errdefs.Validation(errdefs.CodeValidationFailed, "workspace mode not active")
	}
	if c == ":" && m.state.InputType == InputDigit {
		// The colon discards accumulated digits and starts a filter.
		m.state.InputType = InputProject
		m.state.Accumulated = ":"
	} else {
		m.state.Accumulated += c
	}
	st := m.state
	m.mu.Unlock()

	m.emitState(ctx, "char", st)
	return nil
}

// Nav emits a navigation preview event for UI consumers. It never mutates
// workspace selection.
func (m *Machine) Nav(ctx context.Context, direction string) error {
	switch direction {
	case "up", "down", "left", "right", "home", "end":
	default:
		return errdefs.Validation(errdefs.CodeUnknownEnum, "unknown nav direction %q", direction)
	}
	m.mu.Lock()
	if !m.state.Active {
		m.mu.Unlock()
		return errdefs.Validation(errdefs.CodeValidationFailed, "workspace mode not active")
	}
	st := m.state
	m.mu.Unlock()

	m.emit(ctx, Event{
		EventType:   "nav",
		ModeActive:  true,
		ModeType:    st.ModeType,
		Accumulated: st.Accumulated,
		Direction:   direction,
		Timestamp:   m.now().Unix(),
	})
	return nil
}

// Delete emits a delete event for consumers (close selected window).
func (m *Machine) Delete(ctx context.Context) error {
	m.mu.Lock()
	if !m.state.Active {
		m.mu.Unlock()
		return errdefs.Validation(errdefs.CodeValidationFailed, "workspace mode not active")
	}
	st := m.state
	m.mu.Unlock()

	m.emit(ctx, Event{
		EventType:  "delete",
		ModeActive: true,
		ModeType:   st.ModeType,
		Timestamp:  m.now().Unix(),
	})
	return nil
}

// Execute interprets the accumulated input. Digit input runs the
// workspace command and records history; project-filter input emits a
// project_mode_filter effect and never jumps to a workspace.
func (m *Machine) Execute(ctx context.Context) error {
	m.mu.Lock()
	if !m.state.Active {
		m.mu.Unlock()
		return errdefs.Validation(errdefs.CodeValidationFailed, "workspace mode not active")
	}
	st := m.state
	m.state = State{}
	m.mu.Unlock()

	if st.InputType == InputProject {
		log.Info(log.CatWSMode, "project filter executed", "filter", st.Accumulated)
		m.emit(ctx, Event{
			EventType:   "project_mode_filter",
			ModeActive:  false,
			ModeType:    st.ModeType,
			Accumulated: st.Accumulated,
			Filter:      st.Accumulated,
			Timestamp:   m.now().Unix(),
		})
		return nil
	}

	num, err := strconv.Atoi(st.Accumulated)
	if err != nil || num < state.MinWorkspace || num > state.MaxWorkspace {
		m.emitState(ctx, "cancel", State{})
		return errdefs.Validation(errdefs.CodeOutOfRange,
			"workspace %q out of range [%d,%d]", st.Accumulated, state.MinWorkspace, state.MaxWorkspace)
	}

	var cmd string
	switch st.ModeType {
	case ModeMove:
		cmd = fmt.Sprintf("move container to workspace number %d; workspace number %d", num, num)
	default:
		cmd = fmt.Sprintf("workspace number %d", num)
	}
	if err := m.conn.RunCommand(ctx, cmd); err != nil {
		return err
	}

	output := ""
	if m.currentOutput != nil {
		output = m.currentOutput(ctx)
	}
	sw := Switch{
		WorkspaceNum: num,
		OutputName:   output,
		Timestamp:    m.now(),
		ModeType:     st.ModeType,
	}
	m.history.push(sw)
	if m.sink != nil {
		if err := m.sink.Append(num, output, string(st.ModeType), sw.Timestamp); err != nil {
			log.ErrorErr(log.CatHistory, "durable history append failed", err)
		}
	}

	log.Info(log.CatWSMode, "executed", "mode", st.ModeType, "workspace", num)
	m.emit(ctx, Event{
		EventType:  "execute",
		ModeActive: false,
		ModeType:   st.ModeType,
		Workspace:  num,
		Timestamp:  m.now().Unix(),
	})
	return nil
}

// Cancel resets the state without any action.
func (m *Machine) Cancel(ctx context.Context) {
	m.mu.Lock()
	m.state = State{}
	m.mu.Unlock()
	m.emitState(ctx, "cancel", State{})
}

// State returns a snapshot of the current session.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns up to limit records, most recent first.
func (m *Machine) History(limit int) []Switch {
	return m.history.recent(limit)
}

func (m *Machine) emitState(ctx context.Context, eventType string, st State) {
	m.emit(ctx, Event{
		EventType:   eventType,
		ModeActive:  st.Active,
		ModeType:    st.ModeType,
		Accumulated: st.Accumulated,
		Timestamp:   m.now().Unix(),
	})
}

// ParseFilter strips the colon prefix of a project filter.
func ParseFilter(accumulated string) string {
	return strings.TrimPrefix(accumulated, ":")
}
