package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
	"github.com/satriahrh/papantulis/server/internal/board"
	"github.com/satriahrh/papantulis/server/internal/cluster"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Messages sent by board clients
const (
	MessageTypeIngest        MessageType = "ingest"
	MessageTypeStroke        MessageType = "stroke"
	MessageTypeCluster       MessageType = "cluster"
	MessageTypeClear         MessageType = "clear"
	MessageTypeNarrationDone MessageType = "narration_done"
	MessageTypePing          MessageType = "ping"
)

// Messages sent by the server
const (
	MessageTypeBoard        MessageType = "board"
	MessageTypeMutation     MessageType = "mutation"
	MessageTypeNarrate      MessageType = "narrate"
	MessageTypeNotification MessageType = "notification"
	MessageTypeIngestDone   MessageType = "ingest_done"
	MessageTypeClusterDone  MessageType = "cluster_done"
	MessageTypePong         MessageType = "pong"
	MessageTypeError        MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// IngestMessage asks the server to stream generated elements onto the board
type IngestMessage struct {
	BaseMessage
	RefinedPrompt  string `json:"refined_prompt"`
	SessionID      string `json:"session_id"`
	ContextSummary string `json:"context_summary"`
}

// Request returns the generator request carried by the message
func (m *IngestMessage) Request() repositories.StreamRequest {
	return repositories.StreamRequest{
		RefinedPrompt:  m.RefinedPrompt,
		SessionID:      m.SessionID,
		ContextSummary: m.ContextSummary,
	}
}

// StrokeMessage carries one finished freehand stroke. The server relays it
// to the other clients of the board.
type StrokeMessage struct {
	BaseMessage
	Stroke entities.Stroke `json:"stroke"`
}

// ClusterMessage asks the server to replace stroke clusters with images
type ClusterMessage struct {
	BaseMessage
}

// ClearMessage empties the board
type ClearMessage struct {
	BaseMessage
}

// NarrationDoneMessage acknowledges the end of a narration playback
type NarrationDoneMessage struct {
	BaseMessage
	NarrationID string `json:"narration_id"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// BoardMessage is the full board state sent when a client joins
type BoardMessage struct {
	BaseMessage
	Board *entities.Board `json:"board"`
}

// MutationMessage relays one change of the board store
type MutationMessage struct {
	BaseMessage
	Mutation entities.Mutation `json:"mutation"`
}

// NarrateMessage asks clients to play a narration and acknowledge it
type NarrateMessage struct {
	BaseMessage
	Narration repositories.Narration `json:"narration"`
}

// NotificationMessage is a transient banner
type NotificationMessage struct {
	BaseMessage
	Level   string `json:"level"`
	Message string `json:"message"`
}

// IngestDoneMessage reports the outcome of an ingest
type IngestDoneMessage struct {
	BaseMessage
	Summary board.IngestSummary `json:"summary"`
	Errors  []string            `json:"errors,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// ClusterDoneMessage reports the outcome of a cluster run
type ClusterDoneMessage struct {
	BaseMessage
	Summary cluster.Summary `json:"summary"`
	Errors  []string        `json:"errors,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage decodes and validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeIngest:
		var msg IngestMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ingest message: %w", err)
		}
		if strings.TrimSpace(msg.RefinedPrompt) == "" {
			return nil, fmt.Errorf("refined_prompt is required")
		}
		return &msg, nil

	case MessageTypeStroke:
		var msg StrokeMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid stroke message: %w", err)
		}
		if err := msg.Stroke.Validate(); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeCluster:
		var msg ClusterMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid cluster message: %w", err)
		}
		return &msg, nil

	case MessageTypeClear:
		var msg ClearMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid clear message: %w", err)
		}
		return &msg, nil

	case MessageTypeNarrationDone:
		var msg NarrationDoneMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid narration_done message: %w", err)
		}
		if msg.NarrationID == "" {
			return nil, fmt.Errorf("narration_id is required")
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

// CreateIngestDoneMessage summarizes an ingest for the requesting client
func CreateIngestDoneMessage(summary board.IngestSummary, err error) *IngestDoneMessage {
	msg := &IngestDoneMessage{
		BaseMessage: newBase(MessageTypeIngestDone),
		Summary:     summary,
		Errors:      errorStrings(summary.Errors),
	}
	if err != nil {
		msg.Error = err.Error()
	}
	return msg
}

// CreateClusterDoneMessage summarizes a cluster run for everyone in the room
func CreateClusterDoneMessage(summary cluster.Summary) *ClusterDoneMessage {
	return &ClusterDoneMessage{
		BaseMessage: newBase(MessageTypeClusterDone),
		Summary:     summary,
		Errors:      errorStrings(summary.Errors),
	}
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
