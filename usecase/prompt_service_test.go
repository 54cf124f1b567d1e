package usecase

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/papantulis/server/adapters/stt"
	"github.com/satriahrh/papantulis/server/domain/repositories"
)

func newTestPromptService(t *testing.T, llm *MockLLM) *PromptService {
	logger := zaptest.NewLogger(t)
	recognizer := stt.NewMockSpeechToText(logger)
	recognizer.Transcript = "  what is a chloroplast  "
	return NewPromptService(recognizer, llm, NewLanguageSetting(), logger)
}

func TestPromptService_AudioOnly(t *testing.T) {
	llm := &MockLLM{Reply: "unused"}
	service := newTestPromptService(t, llm)

	result, err := service.SpeechToPrompt(context.Background(), PromptRequest{
		SessionID: "s-1",
		Audio:     []byte{1, 2, 3},
		Encoding:  "WEBM_OPUS",
	})
	if err != nil {
		t.Fatalf("SpeechToPrompt failed: %v", err)
	}

	if result.RefinedPrompt != "what is a chloroplast" {
		t.Errorf("Expected the trimmed transcript, got %q", result.RefinedPrompt)
	}
	if result.ContextSummary != "User provided audio only." || result.SessionID != "s-1" {
		t.Errorf("Unexpected result %+v", result)
	}
	if _, generated := llm.calls(); generated != 0 {
		t.Errorf("Expected no refinement call, got %d", generated)
	}
}

func TestPromptService_RefinesWithDocument(t *testing.T) {
	llm := &MockLLM{Reply: "  Explain chloroplast structure using the diagram notes  "}
	service := newTestPromptService(t, llm)

	result, err := service.SpeechToPrompt(context.Background(), PromptRequest{
		SessionID:    "s-2",
		Audio:        []byte{1},
		DocumentText: "Chloroplasts contain thylakoids.",
	})
	if err != nil {
		t.Fatalf("SpeechToPrompt failed: %v", err)
	}

	if result.RefinedPrompt != "Explain chloroplast structure using the diagram notes" {
		t.Errorf("Expected the refined prompt, got %q", result.RefinedPrompt)
	}
	if result.ContextSummary != "User provided audio, and text from a document" {
		t.Errorf("Unexpected context summary %q", result.ContextSummary)
	}

	prompts, _ := llm.calls()
	if len(prompts) != 1 {
		t.Fatalf("Expected one refinement prompt, got %d", len(prompts))
	}
	if !strings.Contains(prompts[0], "what is a chloroplast") || !strings.Contains(prompts[0], "Chloroplasts contain thylakoids.") {
		t.Errorf("Expected transcript and document in the prompt, got %q", prompts[0])
	}
}

func TestPromptService_RefinesWithImages(t *testing.T) {
	llm := &MockLLM{Reply: "Label the parts of the pictured cell"}
	service := newTestPromptService(t, llm)

	images := []repositories.InlineImage{
		{MIMEType: "image/png", Data: []byte("png")},
		{MIMEType: "image/jpeg", Data: []byte("jpg")},
	}
	result, err := service.SpeechToPrompt(context.Background(), PromptRequest{
		SessionID: "s-4",
		Audio:     []byte{1},
		Images:    images,
	})
	if err != nil {
		t.Fatalf("SpeechToPrompt failed: %v", err)
	}

	if result.RefinedPrompt != "Label the parts of the pictured cell" {
		t.Errorf("Expected the refined prompt, got %q", result.RefinedPrompt)
	}
	if result.ContextSummary != "User provided audio, and 2 image(s)." {
		t.Errorf("Unexpected context summary %q", result.ContextSummary)
	}

	attached := llm.attachedImages()
	if len(attached) != 1 || len(attached[0]) != 2 || attached[0][1].MIMEType != "image/jpeg" {
		t.Fatalf("Expected both images to reach the model, got %v", attached)
	}
	prompts, _ := llm.calls()
	if len(prompts) != 1 || !strings.Contains(prompts[0], "following image(s) open") {
		t.Errorf("Expected the prompt to mention the images, got %v", prompts)
	}
}

func TestPromptService_DocumentAndImagesSummary(t *testing.T) {
	llm := &MockLLM{Reply: "refined"}
	service := newTestPromptService(t, llm)

	result, err := service.SpeechToPrompt(context.Background(), PromptRequest{
		SessionID:    "s-5",
		Audio:        []byte{1},
		DocumentText: "Chloroplasts contain thylakoids.",
		Images:       []repositories.InlineImage{{MIMEType: "image/png", Data: []byte("png")}},
	})
	if err != nil {
		t.Fatalf("SpeechToPrompt failed: %v", err)
	}
	if result.ContextSummary != "User provided audio, and text from a document, and 1 image(s)." {
		t.Errorf("Unexpected context summary %q", result.ContextSummary)
	}
}

func TestPromptService_RefinementFailure(t *testing.T) {
	service := newTestPromptService(t, &MockLLM{StartErr: errQuota})

	_, err := service.SpeechToPrompt(context.Background(), PromptRequest{
		SessionID:    "s-3",
		Audio:        []byte{1},
		DocumentText: "notes",
	})
	if err == nil || !strings.Contains(err.Error(), errQuota.Error()) {
		t.Errorf("Expected the model error, got %v", err)
	}
}

func TestPromptService_RejectsMissingInput(t *testing.T) {
	service := newTestPromptService(t, &MockLLM{})

	if _, err := service.SpeechToPrompt(context.Background(), PromptRequest{Audio: []byte{1}}); err == nil {
		t.Error("Expected an error without session id")
	}
	if _, err := service.SpeechToPrompt(context.Background(), PromptRequest{SessionID: "s"}); err == nil {
		t.Error("Expected an error without audio")
	}
}

func TestTruncateWords(t *testing.T) {
	long := strings.Repeat("word ", MaxDocumentWords+10)
	got := TruncateWords(long, MaxDocumentWords)
	if n := len(strings.Fields(got)); n != MaxDocumentWords {
		t.Errorf("Expected %d words, got %d", MaxDocumentWords, n)
	}

	if got := TruncateWords("  a b  ", 5); got != "a b" {
		t.Errorf("Expected short text to be trimmed only, got %q", got)
	}
	if got := TruncateWords("   ", 5); got != "" {
		t.Errorf("Expected empty text, got %q", got)
	}
}

func TestLanguageSetting(t *testing.T) {
	setting := NewLanguageSetting()
	if setting.Get() != "en_US" {
		t.Errorf("Expected en_US by default, got %s", setting.Get())
	}

	got, err := setting.Set(" id-ID ")
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got != "id_ID" || setting.Get() != "id_ID" {
		t.Errorf("Expected id_ID, got %s / %s", got, setting.Get())
	}

	if _, err := setting.Set(""); err == nil {
		t.Error("Expected an error for an empty language")
	}
	if setting.Get() != "id_ID" {
		t.Errorf("Expected the previous language to be kept, got %s", setting.Get())
	}
}
