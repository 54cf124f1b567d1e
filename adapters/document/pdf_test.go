package document

import (
	"os"
	"strings"
	"testing"
)

func TestExtractPDFText(t *testing.T) {
	data, err := os.ReadFile("testdata/lesson.pdf")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	text, err := ExtractPDFText(data)
	if err != nil {
		t.Fatalf("ExtractPDFText failed: %v", err)
	}
	if !strings.Contains(text, "Tides") || !strings.Contains(text, "moon") {
		t.Errorf("Expected the page text, got %q", text)
	}
}

func TestExtractPDFText_NotAPDF(t *testing.T) {
	if _, err := ExtractPDFText([]byte("plain notes, not a pdf")); err == nil {
		t.Error("Expected an error for non pdf input")
	}
	if _, err := ExtractPDFText(nil); err == nil {
		t.Error("Expected an error for empty input")
	}
}

func TestImageMediaType(t *testing.T) {
	tests := []struct {
		contentType string
		filename    string
		want        string
		ok          bool
	}{
		{"image/png", "scan.bin", "image/png", true},
		{"application/octet-stream", "Diagram.JPG", "image/jpeg", true},
		{"", "photo.webp", "image/webp", true},
		{"application/pdf", "notes.pdf", "", false},
	}

	for _, tt := range tests {
		got, ok := ImageMediaType(tt.contentType, tt.filename)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Expected (%s, %v) for %s, got (%s, %v)", tt.want, tt.ok, tt.filename, got, ok)
		}
	}
}
