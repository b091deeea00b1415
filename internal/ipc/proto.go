// Package ipc implements the i3/sway IPC protocol over two long-lived
// connections to the compositor's control socket: one for commands and
// queries, one for subscribed event streams.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// magic is the i3-ipc frame preamble. Frames are:
// "i3-ipc" <u32 payload length> <u32 message type> <payload>.
var magic = [6]byte{'i', '3', '-', 'i', 'p', 'c'}

const headerLen = 14

// maxPayload bounds a single frame. GET_TREE on a busy session is a few
// hundred KB; anything past this indicates a desynced stream.
const maxPayload = 32 << 20

// MessageType identifies a request sent to the compositor.
type MessageType uint32

const (
	MsgRunCommand    MessageType = 0
	MsgGetWorkspaces MessageType = 1
	MsgSubscribe     MessageType = 2
	MsgGetOutputs    MessageType = 3
	MsgGetTree       MessageType = 4
	MsgGetMarks      MessageType = 5
	MsgSendTick      MessageType = 10
)

// eventFlag marks reply types that carry subscribed events.
const eventFlag uint32 = 0x80000000

// EventType identifies a subscribed compositor event.
type EventType uint32

const (
	EventWorkspace EventType = 0
	EventOutput    EventType = 1
	EventWindow    EventType = 3
	EventShutdown  EventType = 6
	EventTick      EventType = 7
)

func (t EventType) String() string {
	switch t {
	case EventWorkspace:
		return "workspace"
	case EventOutput:
		return "output"
	case EventWindow:
		return "window"
	case EventShutdown:
		return "shutdown"
	case EventTick:
		return "tick"
	default:
		return fmt.Sprintf("event(%d)", uint32(t))
	}
}

// frame is a decoded IPC frame. IsEvent distinguishes event frames from
// command replies sharing the same connection.
type frame struct {
	Type    uint32
	IsEvent bool
	Payload []byte
}

// writeMessage encodes and writes one request frame.
func writeMessage(w io.Writer, t MessageType, payload []byte) error {
	buf := make([]byte, headerLen+len(payload))
	copy(buf[0:6], magic[:])
	binary.LittleEndian.PutUint32(buf[6:10], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[10:14], uint32(t))
	copy(buf[headerLen:], payload)
	_, err := w.Write(buf)
	return err
}

// readFrame reads exactly one frame from the stream.
func readFrame(r io.Reader) (frame, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return frame{}, err
	}
	if [6]byte(hdr[0:6]) != magic {
		return frame{}, fmt.Errorf("bad ipc magic %q", hdr[0:6])
	}
	length := binary.LittleEndian.Uint32(hdr[6:10])
	if length > maxPayload {
		return frame{}, fmt.Errorf("ipc payload too large: %d bytes", length)
	}
	typ := binary.LittleEndian.Uint32(hdr[10:14])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return frame{}, err
	}

	return frame{
		Type:    typ &^ eventFlag,
		IsEvent: typ&eventFlag != 0,
		Payload: payload,
	}, nil
}

// decodeReply unmarshals a reply payload into v.
func decodeReply(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decoding ipc reply: %w", err)
	}
	return nil
}
