// Package wire defines the control messages exchanged between client and
// daemon and the signal request shapes the dispatch loop understands. It
// mirrors the teacher's types.Message envelope shape (ID, Type, Payload) but
// addressed point-to-point rather than pub/sub, since the daemon has exactly
// one registry owner to address.
package wire

import (
	"encoding/json"
	"fmt"

	"pueued/internal/types"
)

// MessageType identifies the payload carried by a Message.
type MessageType string

const (
	MsgEnqueue        MessageType = "Enqueue"
	MsgStatus         MessageType = "Status"
	MsgPause          MessageType = "Pause"
	MsgStart          MessageType = "Start"
	MsgKill           MessageType = "Kill"
	MsgSend           MessageType = "Send"
	MsgReset          MessageType = "Reset"
	MsgGroup          MessageType = "Group"
	MsgLogRangeFetch  MessageType = "LogRangeFetch"
	MsgClean          MessageType = "Clean"
	MsgDaemonShutdown MessageType = "DaemonShutdown"
)

// Message is the envelope sent from client to daemon over the transport.
type Message struct {
	ID      string      `json:"id"`
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// UnmarshalJSON decodes Payload into the concrete type Type names instead of
// the generic map[string]any encoding/json would otherwise produce. Without
// this, every dispatch handler's payload type assertion would fail the
// moment a Message crosses the wire rather than being constructed in-process.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      string          `json:"id"`
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.ID = raw.ID
	m.Type = raw.Type
	if len(raw.Payload) == 0 || string(raw.Payload) == "null" {
		m.Payload = nil
		return nil
	}

	var payload any
	switch raw.Type {
	case MsgEnqueue:
		var p types.TaskSpec
		payload = &p
	case MsgPause:
		var p Pause
		payload = &p
	case MsgStart:
		var p Start
		payload = &p
	case MsgKill:
		var p Kill
		payload = &p
	case MsgSend:
		var p Send
		payload = &p
	case MsgReset:
		var p Reset
		payload = &p
	case MsgGroup:
		var p Group
		payload = &p
	case MsgLogRangeFetch:
		var p LogRangeFetch
		payload = &p
	case MsgClean:
		var p Clean
		payload = &p
	case MsgDaemonShutdown:
		var p DaemonShutdown
		payload = &p
	default:
		return fmt.Errorf("wire: unknown message type %q", raw.Type)
	}

	if err := json.Unmarshal(raw.Payload, payload); err != nil {
		return err
	}
	m.Payload = dereference(payload)
	return nil
}

// dereference unwraps the pointer UnmarshalJSON decodes into so handlers can
// keep asserting value types (types.TaskSpec, wire.Pause, ...) exactly as
// they do for in-process construction.
func dereference(p any) any {
	switch v := p.(type) {
	case *types.TaskSpec:
		return *v
	case *Pause:
		return *v
	case *Start:
		return *v
	case *Kill:
		return *v
	case *Send:
		return *v
	case *Reset:
		return *v
	case *Group:
		return *v
	case *LogRangeFetch:
		return *v
	case *Clean:
		return *v
	case *DaemonShutdown:
		return *v
	default:
		return p
	}
}

// Pause requests SIGSTOP delivery to the given tasks (or all Running tasks if
// Tasks is empty).
type Pause struct {
	Tasks    []int `json:"tasks,omitempty"`
	Children bool  `json:"children,omitempty"`
	Wait     bool  `json:"wait,omitempty"`
}

// Start requests SIGCONT delivery to paused tasks, or admits eligible queued
// tasks immediately if Tasks is empty.
type Start struct {
	Tasks    []int `json:"tasks,omitempty"`
	Children bool  `json:"children,omitempty"`
}

// Kill requests signal delivery (default SIGTERM) to the given tasks.
type Kill struct {
	Tasks    []int  `json:"tasks,omitempty"`
	Children bool   `json:"children,omitempty"`
	Signal   string `json:"signal,omitempty"`
}

// Send writes Input verbatim to TaskId's stdin pipe.
type Send struct {
	TaskId int    `json:"task_id"`
	Input  []byte `json:"input"`
}

// Reset kills every non-terminal task, clears the registry's task table (the
// groups are kept), and asks the Log Store to remove every log file.
type Reset struct {
	Children bool `json:"children,omitempty"`
}

// GroupAction names one of the Group message's sub-operations.
type GroupAction string

const (
	GroupAdd      GroupAction = "add"
	GroupRemove   GroupAction = "remove"
	GroupSetLimit GroupAction = "set_limit"
	GroupPause    GroupAction = "pause"
	GroupResume   GroupAction = "resume"
)

// Group mutates the group table.
type Group struct {
	Action GroupAction `json:"action"`
	Name   string      `json:"name"`
	Limit  int         `json:"limit,omitempty"`
}

// ShutdownKind is Graceful or Immediate (SPEC_FULL.md §4.7).
type ShutdownKind string

const (
	ShutdownGraceful  ShutdownKind = "graceful"
	ShutdownImmediate ShutdownKind = "immediate"
)

// DaemonShutdown requests the Shutdown Coordinator take over.
type DaemonShutdown struct {
	Kind ShutdownKind `json:"kind"`
}

// LogRangeFetch requests a compressed stdout/stderr range for one task.
type LogRangeFetch struct {
	TaskId int  `json:"task_id"`
	Lines  *int `json:"lines,omitempty"`
}

// Clean removes terminal tasks matching Filter from the registry and their
// log files from disk.
type Clean struct {
	Filter types.Filter `json:"filter"`
}

// Response is the envelope the daemon sends back for every Message.
type Response struct {
	ID      string `json:"id"`
	Ok      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// LogRangeResult is the Payload of a successful LogRangeFetch Response.
type LogRangeResult struct {
	Stdout []byte `json:"stdout"` // snappy-framed
	Stderr []byte `json:"stderr"` // snappy-framed
}
