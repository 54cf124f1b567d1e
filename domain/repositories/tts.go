package repositories

import "context"

// TextToSpeech abstracts narration synthesis
type TextToSpeech interface {
	// ConvertTextToSpeech streams synthesized audio for text
	ConvertTextToSpeech(ctx context.Context, text string, opts SpeechOptions) (<-chan []byte, error)
	// AudioMIMEType is the MIME type of the produced audio
	AudioMIMEType() string
}

// SpeechOptions tunes a single synthesis request
type SpeechOptions struct {
	Language string `json:"language"`
}
