package ipc

import "encoding/json"

// Rect is a compositor geometry rectangle.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WindowProperties carries X11/XWayland window properties. Wayland-native
// windows report AppID on the node instead.
type WindowProperties struct {
	Class    string `json:"class"`
	Instance string `json:"instance"`
	Title    string `json:"title"`
}

// Node is a container in the compositor layout tree.
type Node struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Type             string            `json:"type"` // root, output, workspace, con, floating_con
	AppID            string            `json:"app_id"`
	PID              int               `json:"pid"`
	Focused          bool              `json:"focused"`
	Visible          bool              `json:"visible"`
	Marks            []string          `json:"marks"`
	Rect             Rect              `json:"rect"`
	WindowRect       Rect              `json:"window_rect"`
	WindowProperties *WindowProperties `json:"window_properties,omitempty"`
	Num              int               `json:"num"` // workspace nodes only
	Output           string            `json:"output"`
	Nodes            []*Node           `json:"nodes"`
	FloatingNodes    []*Node           `json:"floating_nodes"`
}

// Walk visits n and every descendant (tiled and floating) depth-first.
func (n *Node) Walk(visit func(*Node)) {
	visit(n)
	for _, c := range n.Nodes {
		c.Walk(visit)
	}
	for _, c := range n.FloatingNodes {
		c.Walk(visit)
	}
}

// FindByID returns the descendant with the given container id, or nil.
func (n *Node) FindByID(id int64) *Node {
	var found *Node
	n.Walk(func(c *Node) {
		if c.ID == id {
			found = c
		}
	})
	return found
}

// Class returns the identity string used for matching: app_id for
// Wayland-native windows, X11 class otherwise.
func (n *Node) Class() string {
	if n.AppID != "" {
		return n.AppID
	}
	if n.WindowProperties != nil {
		return n.WindowProperties.Class
	}
	return ""
}

// Instance returns the X11 instance, empty for Wayland-native windows.
func (n *Node) Instance() string {
	if n.WindowProperties != nil {
		return n.WindowProperties.Instance
	}
	return ""
}

// IsWindow reports whether the node is an actual application window rather
// than a structural container.
func (n *Node) IsWindow() bool {
	if n.Type != "con" && n.Type != "floating_con" {
		return false
	}
	return len(n.Nodes) == 0 && (n.AppID != "" || n.WindowProperties != nil || n.Name != "")
}

// Workspace is a GET_WORKSPACES reply entry.
type Workspace struct {
	Num     int    `json:"num"`
	Name    string `json:"name"`
	Focused bool   `json:"focused"`
	Visible bool   `json:"visible"`
	Output  string `json:"output"`
	Urgent  bool   `json:"urgent"`
}

// Output is a GET_OUTPUTS reply entry.
type Output struct {
	Name    string  `json:"name"`
	Active  bool    `json:"active"`
	Primary bool    `json:"primary"`
	Scale   float64 `json:"scale"`
	Rect    Rect    `json:"rect"`
}

// CommandResult is one entry of a RUN_COMMAND reply.
type CommandResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// WindowEvent is the payload of a window:: event.
type WindowEvent struct {
	Change    string `json:"change"` // new, close, focus, title, move, floating, mark
	Container Node   `json:"container"`
}

// WorkspaceEvent is the payload of a workspace:: event.
type WorkspaceEvent struct {
	Change  string `json:"change"` // focus, init, empty, move, rename
	Current *Node  `json:"current"`
	Old     *Node  `json:"old"`
}

// OutputEvent is the payload of an output:: event. Sway only reports
// "unspecified"; the handler re-queries GET_OUTPUTS regardless.
type OutputEvent struct {
	Change string `json:"change"`
}

// TickEvent is the payload of a tick:: event.
type TickEvent struct {
	First   bool   `json:"first"`
	Payload string `json:"payload"`
}

// Event is a decoded compositor event delivered to subscribers.
type Event struct {
	Type    EventType
	Change  string
	Window  *WindowEvent
	WS      *WorkspaceEvent
	Output  *OutputEvent
	Tick    *TickEvent
	Raw     json.RawMessage
}

// Name returns the canonical "type::change" event name used in event
// records and correlation roots.
func (e Event) Name() string {
	if e.Change == "" {
		return e.Type.String()
	}
	return e.Type.String() + "::" + e.Change
}
