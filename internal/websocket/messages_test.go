package websocket

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/satriahrh/papantulis/server/internal/board"
	"github.com/satriahrh/papantulis/server/internal/cluster"
)

func TestMessageValidator_ValidateMessage(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		want    interface{}
		wantErr bool
	}{
		{
			name:    "valid ingest",
			message: `{"type":"ingest","refined_prompt":"explain tides","session_id":"s","context_summary":"User provided audio only."}`,
			want:    &IngestMessage{},
		},
		{
			name:    "ingest without prompt",
			message: `{"type":"ingest","session_id":"s"}`,
			wantErr: true,
		},
		{
			name:    "valid stroke",
			message: `{"type":"stroke","stroke":{"id":"s1","tool":"pen","points":[{"x":0,"y":0}]}}`,
			want:    &StrokeMessage{},
		},
		{
			name:    "stroke without points",
			message: `{"type":"stroke","stroke":{"id":"s1","tool":"pen","points":[]}}`,
			wantErr: true,
		},
		{
			name:    "stroke with unknown tool",
			message: `{"type":"stroke","stroke":{"id":"s1","tool":"brush","points":[{"x":0,"y":0}]}}`,
			wantErr: true,
		},
		{
			name:    "cluster",
			message: `{"type":"cluster"}`,
			want:    &ClusterMessage{},
		},
		{
			name:    "clear",
			message: `{"type":"clear"}`,
			want:    &ClearMessage{},
		},
		{
			name:    "narration done",
			message: `{"type":"narration_done","narration_id":"n-1"}`,
			want:    &NarrationDoneMessage{},
		},
		{
			name:    "narration done without id",
			message: `{"type":"narration_done"}`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			message: `{"type":"audio_chunk"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			message: `{"type":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if gotType, wantType := typeName(got), typeName(tt.want); gotType != wantType {
				t.Errorf("Expected %s, got %s", wantType, gotType)
			}
		})
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case *IngestMessage:
		return "ingest"
	case *StrokeMessage:
		return "stroke"
	case *ClusterMessage:
		return "cluster"
	case *ClearMessage:
		return "clear"
	case *NarrationDoneMessage:
		return "narration_done"
	case *PingMessage:
		return "ping"
	default:
		return "unknown"
	}
}

func TestIngestMessage_Request(t *testing.T) {
	parsed, err := NewMessageValidator().ValidateMessage([]byte(
		`{"type":"ingest","refined_prompt":"tides","session_id":"s-9","context_summary":"summary"}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}

	req := parsed.(*IngestMessage).Request()
	if req.RefinedPrompt != "tides" || req.SessionID != "s-9" || req.ContextSummary != "summary" {
		t.Errorf("Unexpected request %+v", req)
	}
}

func TestMessageValidator_ValidatePing(t *testing.T) {
	result, err := NewMessageValidator().ValidateMessage([]byte(`{"type":"ping","data":"test-ping"}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}

	pingMsg, ok := result.(*PingMessage)
	if !ok {
		t.Fatalf("Expected *PingMessage, got %T", result)
	}
	if pingMsg.Data != "test-ping" {
		t.Errorf("Expected data 'test-ping', got '%s'", pingMsg.Data)
	}
}

func TestCreateErrorMessage(t *testing.T) {
	errorMsg := CreateErrorMessage("TEST_ERROR", "Test error message", "Test error details")

	if errorMsg.Type != MessageTypeError {
		t.Errorf("Expected type %s, got %s", MessageTypeError, errorMsg.Type)
	}
	if errorMsg.Code != "TEST_ERROR" || errorMsg.Message != "Test error message" || errorMsg.Details != "Test error details" {
		t.Errorf("Unexpected error message %+v", errorMsg)
	}

	timestamp, err := time.Parse(time.RFC3339, errorMsg.Timestamp)
	if err != nil {
		t.Errorf("Invalid timestamp format: %v", err)
	}
	if time.Since(timestamp) > 2*time.Second {
		t.Errorf("Timestamp is not recent: %s", errorMsg.Timestamp)
	}
}

func TestCreateIngestDoneMessage(t *testing.T) {
	summary := board.IngestSummary{Elements: 3, DecodeFailures: 1, Errors: []error{errors.New("bad object")}}
	msg := CreateIngestDoneMessage(summary, errors.New("stream unavailable"))

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded["type"] != string(MessageTypeIngestDone) || decoded["error"] != "stream unavailable" {
		t.Errorf("Unexpected message %v", decoded)
	}
	errs := decoded["errors"].([]interface{})
	if len(errs) != 1 || errs[0] != "bad object" {
		t.Errorf("Expected the element errors as strings, got %v", errs)
	}
	if decoded["summary"].(map[string]interface{})["decode_failures"] != float64(1) {
		t.Errorf("Expected decode failures in the summary, got %v", decoded["summary"])
	}
}

func TestCreateClusterDoneMessage(t *testing.T) {
	msg := CreateClusterDoneMessage(cluster.Summary{ClustersFound: 2, ImageIDs: []string{"a", "b"}})
	if msg.Type != MessageTypeClusterDone || msg.Summary.ClustersFound != 2 || msg.Errors != nil {
		t.Errorf("Unexpected message %+v", msg)
	}
}
