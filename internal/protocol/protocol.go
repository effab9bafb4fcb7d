// Package protocol defines the JSON messages exchanged over the control
// WebSocket.
package protocol

import (
	"time"

	"actionreplay/internal/playback"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypePlayback is sent by the server for every playback event
	TypePlayback MessageType = "playback"

	// TypePlay is sent by a client to start a group
	TypePlay MessageType = "play"

	// TypeCancel is sent by a client to stop the active playback
	TypeCancel MessageType = "cancel"

	// TypeStatusRequest asks for a TypeStatus reply
	TypeStatusRequest MessageType = "status_req"

	// TypeStatus carries the orchestrator state
	TypeStatus MessageType = "status"

	// TypeError reports a rejected client request
	TypeError MessageType = "error"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// PlayPayload is the payload for TypePlay
type PlayPayload struct {
	Group string `json:"group"` // name or ID
}

// PlaybackPayload is the payload for TypePlayback
type PlaybackPayload struct {
	Event     string `json:"event"`
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
	Index     int    `json:"index,omitempty"`
	Total     int    `json:"total,omitempty"`
	ItemType  string `json:"item_type,omitempty"`
	Status    string `json:"status,omitempty"`
	Executed  int    `json:"executed,omitempty"`
	Skipped   int    `json:"skipped,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StatusPayload is the payload for TypeStatus
type StatusPayload struct {
	State    string `json:"state"`
	Group    string `json:"group,omitempty"`
	GameMode bool   `json:"game_mode"`
}

// ErrorPayload is the payload for TypeError
type ErrorPayload struct {
	Message string `json:"message"`
}

// FromEvent converts an orchestrator event into a broadcast message
func FromEvent(ev playback.Event) Message {
	p := PlaybackPayload{
		Event:     ev.Kind.String(),
		GroupID:   ev.GroupID,
		GroupName: ev.GroupName,
		Index:     ev.Index,
		Total:     ev.Total,
	}
	switch ev.Kind {
	case playback.EventItem, playback.EventSkipped:
		p.ItemType = ev.Item.Type.String()
	case playback.EventFinished:
		p.Status = ev.Result.Status.String()
		p.Executed = ev.Result.Executed
		p.Skipped = ev.Result.Skipped
		p.ElapsedMS = ev.Result.Elapsed.Milliseconds()
		if ev.Result.Err != nil {
			p.Error = ev.Result.Err.Error()
		}
	}
	return Message{Type: TypePlayback, Payload: p}
}

// Elapsed returns the payload's elapsed time
func (p PlaybackPayload) Elapsed() time.Duration {
	return time.Duration(p.ElapsedMS) * time.Millisecond
}
