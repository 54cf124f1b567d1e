package entities

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeStreamElement_Variants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ElementKind
	}{
		{"text", `{"type":"text","x":10,"y":20,"content":"**Hi**","speakAloud":"hi"}`, ElementKindText},
		{"card", `{"type":"card","x":10,"y":20,"content":"c","backgroundColor":"#fff"}`, ElementKindCard},
		{"line", `{"type":"line","x1":0,"y1":0,"x2":5,"y2":5,"thickness":"m"}`, ElementKindLine},
		{"image search", `{"type":"image","search":"volcano","x":1,"y":2,"width":200}`, ElementKindImageSearch},
		{"image resolved", `{"type":"image","imageUrl":"https://img.test/a.png","x":1,"y":2,"width":200,"height":100}`, ElementKindImageResolved},
		{"image without source", `{"type":"image","x":1,"y":2}`, ElementKindUnrecognized},
		{"error object", `{"error":"generation failed"}`, ElementKindUnrecognized},
		{"unknown type", `{"type":"video","x":1}`, ElementKindUnrecognized},
		{"uppercase type", `{"type":"TEXT","x":1,"y":1,"content":"x"}`, ElementKindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := DecodeStreamElement([]byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeStreamElement failed: %v", err)
			}
			if el.Kind != tt.want {
				t.Errorf("Expected kind %s, got %s", tt.want, el.Kind)
			}
		})
	}
}

func TestDecodeStreamElement_InvalidJSON(t *testing.T) {
	if _, err := DecodeStreamElement([]byte(`{"type":"text",}`)); err == nil {
		t.Error("Expected an error for invalid JSON")
	}
}

func TestDecodeStreamElement_LineThickness(t *testing.T) {
	el, err := DecodeStreamElement([]byte(`{"type":"line","x1":0,"y1":0,"x2":5,"y2":5,"thickness":"s","thicknessClass":"l"}`))
	if err != nil {
		t.Fatalf("DecodeStreamElement failed: %v", err)
	}
	if el.Line.ThicknessClass != "l" {
		t.Errorf("Expected thicknessClass to win, got %s", el.Line.ThicknessClass)
	}

	el, _ = DecodeStreamElement([]byte(`{"type":"line","x1":0,"y1":0,"x2":5,"y2":5,"thickness":"s"}`))
	if el.Line.ThicknessClass != "s" {
		t.Errorf("Expected thickness as fallback, got %s", el.Line.ThicknessClass)
	}
}

func TestStreamElement_MarshalKeepsWireShape(t *testing.T) {
	raw := `{"type":"image","search":"volcano","x":1,"y":2,"width":200,"speakAloud":"look"}`
	el, err := DecodeStreamElement([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeStreamElement failed: %v", err)
	}

	data, err := json.Marshal(el)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded["type"] != "image" || decoded["search"] != "volcano" || decoded["speakAloud"] != "look" {
		t.Errorf("Unexpected wire shape %v", decoded)
	}
	if _, ok := decoded["height"]; ok {
		t.Errorf("Expected an absent height to stay absent, got %v", decoded["height"])
	}
}

func TestStreamElement_MarshalUnrecognizedReturnsRaw(t *testing.T) {
	raw := `{"type":"video","src":"x"}`
	el, _ := DecodeStreamElement([]byte(raw))

	data, err := json.Marshal(el)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != raw {
		t.Errorf("Expected %s, got %s", raw, data)
	}
}

func TestStreamElement_Position(t *testing.T) {
	el, _ := DecodeStreamElement([]byte(`{"type":"line","x1":3,"y1":4,"x2":5,"y2":5}`))
	if x, y := el.Position(); x != 3 || y != 4 {
		t.Errorf("Expected (3,4), got (%v,%v)", x, y)
	}
}

func TestNarration_HasAudio(t *testing.T) {
	if (Narration{SpeakAloud: "   "}).HasAudio() {
		t.Error("Expected blank narration to have no audio")
	}
	if !(Narration{AudioDataURL: "data:audio/mpeg;base64,AA"}).HasAudio() {
		t.Error("Expected an audio URL to count as audio")
	}
}

func TestCanvasElement_Validate(t *testing.T) {
	tests := []struct {
		name    string
		element CanvasElement
		wantErr string
	}{
		{"text", CanvasElement{ID: "a", Kind: CanvasElementText}, ""},
		{"line", CanvasElement{ID: "a", Kind: CanvasElementLine, Points: []Point{{}, {X: 1}}}, ""},
		{"no id", CanvasElement{Kind: CanvasElementText}, "id"},
		{"short line", CanvasElement{ID: "a", Kind: CanvasElementLine, Points: []Point{{}}}, "two points"},
		{"bad kind", CanvasElement{ID: "a", Kind: "video"}, "kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.element.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if NewElementID() == NewElementID() {
		t.Error("Expected element ids to be unique")
	}
}
