package stt

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// MockSpeechToText is a placeholder implementation for speech recognition,
// used when no Google credentials are available
type MockSpeechToText struct {
	Transcript string
	logger     *zap.Logger
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// MockSpeechToTextStream is a mock implementation of streaming speech recognition
type MockSpeechToTextStream struct {
	parent        *MockSpeechToText
	audioReceived bool
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		Transcript: "Explain how photosynthesis works",
		logger:     logger,
	}
}

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Info("Initializing mock streaming transcription",
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))
	return &MockSpeechToTextStream{parent: s}, nil
}

// Stream implements mock streaming audio processing
func (m *MockSpeechToTextStream) Stream(data []byte) error {
	if len(data) > 0 {
		m.audioReceived = true
	}
	return nil
}

// End returns the mock transcription result
func (m *MockSpeechToTextStream) End() (string, error) {
	if !m.audioReceived {
		return "", errors.New("no audio data received")
	}
	return m.parent.Transcript, nil
}

// TranscribeAudio returns the fixed transcript for any non-empty recording
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.String("encoding", config.Encoding))

	if len(audioData) == 0 {
		return "", errors.New("no audio data received")
	}
	return s.Transcript, nil
}
