package events

import (
	"context"
	"strings"
	"time"

	"github.com/vpittamp/i3pm/internal/correlation"
	"github.com/vpittamp/i3pm/internal/pubsub"
)

// Recorder enriches events with correlation metadata, stores them in the
// ring, and fans them out on the broker for RPC subscribers.
type Recorder struct {
	ring    *Ring
	broker  *pubsub.Broker[Record]
	corr    *correlation.Service
}

// NewRecorder creates a recorder with the given ring capacity.
func NewRecorder(capacity int, corr *correlation.Service) *Recorder {
	return &Recorder{
		ring:   NewRing(capacity),
		broker: pubsub.NewBroker[Record](),
		corr:   corr,
	}
}

// Emit records one event, annotated with the correlation context carried
// by ctx.
func (r *Recorder) Emit(ctx context.Context, eventType string, payload any, enrichment map[string]any) {
	rec := Record{
		Timestamp:  time.Now(),
		EventType:  eventType,
		Payload:    payload,
		Enrichment: enrichment,
		Category:   categoryOf(eventType),
	}
	if cc, ok := correlation.FromContext(ctx); ok {
		rec.CorrelationID = cc.CorrelationID
		rec.Depth = cc.Depth
		if r.corr != nil {
			r.corr.RecordCorrelated()
		}
	}
	r.ring.Push(rec)
	r.broker.Publish(pubsub.CreatedEvent, rec)
}

// Subscribe returns a channel of emitted records, closed with ctx.
func (r *Recorder) Subscribe(ctx context.Context) <-chan pubsub.Event[Record] {
	return r.broker.Subscribe(ctx)
}

// Ring exposes the underlying ring for queries.
func (r *Recorder) Ring() *Ring { return r.ring }

// Close shuts the broker down.
func (r *Recorder) Close() { r.broker.Close() }

func categoryOf(eventType string) Category {
	prefix, _, _ := strings.Cut(eventType, "::")
	prefix, _, _ = strings.Cut(prefix, ".")
	switch prefix {
	case "window":
		return CategoryWindow
	case "workspace":
		return CategoryWorkspace
	case "output":
		return CategoryOutput
	case "project":
		return CategoryProject
	case "launch", "notify_launch":
		return CategoryLaunch
	case "workspace_mode", "project_mode_filter":
		return CategoryWSMode
	case "badge", "badges":
		return CategoryBadge
	case "layout":
		return CategoryLayout
	default:
		return CategoryDaemon
	}
}

// IconFor maps an event category to the glyph published alongside records
// for the log/events tab.
func IconFor(cat Category) string {
	switch cat {
	case CategoryWindow:
		return "" // window
	case CategoryWorkspace:
		return "" // layers
	case CategoryOutput:
		return "" // display
	case CategoryProject:
		return "" // folder
	case CategoryLaunch:
		return "" // rocket
	case CategoryWSMode:
		return "" // keyboard
	case CategoryBadge:
		return "" // bell
	case CategoryLayout:
		return "" // columns
	default:
		return "" // gear
	}
}

// ColorFor maps an event category to its display colour.
func ColorFor(cat Category) string {
	switch cat {
	case CategoryWindow:
		return "#7AA2F7"
	case CategoryWorkspace:
		return "#9ECE6A"
	case CategoryOutput:
		return "#E0AF68"
	case CategoryProject:
		return "#BB9AF7"
	case CategoryLaunch:
		return "#F7768E"
	case CategoryWSMode:
		return "#7DCFFF"
	case CategoryBadge:
		return "#FF9E64"
	case CategoryLayout:
		return "#73DACA"
	default:
		return "#A9B1D6"
	}
}
