package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a client using application default credentials
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

func recognitionConfig(config repositories.AudioConfig) (*speechpb.RecognitionConfig, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}
	language := config.Language
	if language == "" {
		language = "en-US"
	}
	rc := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		LanguageCode:               strings.ReplaceAll(language, "_", "-"),
		EnableAutomaticPunctuation: true,
	}
	if config.SampleRate > 0 {
		rc.SampleRateHertz = int32(config.SampleRate)
	}
	return rc, nil
}

// TranscribeAudio converts a complete recording to text
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", errors.New("no audio data received")
	}

	rc, err := recognitionConfig(config)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: rc,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to recognize speech: %w", err)
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
		}
	}
	transcript := strings.TrimSpace(strings.Join(parts, " "))
	if transcript == "" {
		return "", errors.New("no speech detected in audio")
	}

	g.logger.Debug("Transcribed audio",
		zap.Int("audioSize", len(audioData)),
		zap.String("encoding", config.Encoding),
		zap.Int("transcriptLength", len(transcript)))
	return transcript, nil
}

// InitTranscribeStreaming opens a single utterance streaming session
func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	rc, err := recognitionConfig(config)
	if err != nil {
		return nil, err
	}

	stream, err := g.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:          rc,
				InterimResults:  false,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	s := &GoogleSpeechToTextStream{
		stream: stream,
		ctx:    ctx,
		result: make(chan streamResult, 1),
	}
	go s.receiveResults()
	return s, nil
}

type streamResult struct {
	transcript string
	err        error
}

// GoogleSpeechToTextStream is one streaming recognition session
type GoogleSpeechToTextStream struct {
	stream        speechpb.Speech_StreamingRecognizeClient
	ctx           context.Context
	audioReceived bool
	result        chan streamResult
}

// Stream sends an audio chunk
func (g *GoogleSpeechToTextStream) Stream(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	g.audioReceived = true
	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: data},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// End closes the audio stream and waits for the final transcript
func (g *GoogleSpeechToTextStream) End() (string, error) {
	if !g.audioReceived {
		g.stream.CloseSend()
		return "", errors.New("no audio data received")
	}
	if err := g.stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	select {
	case <-g.ctx.Done():
		return "", fmt.Errorf("context cancelled while waiting for result: %w", g.ctx.Err())
	case r := <-g.result:
		if r.err != nil {
			return "", r.err
		}
		if r.transcript == "" {
			return "", errors.New("no speech detected in audio")
		}
		return r.transcript, nil
	}
}

func (g *GoogleSpeechToTextStream) receiveResults() {
	var final []string
	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			g.result <- streamResult{transcript: strings.Join(final, " ")}
			return
		}
		if err != nil {
			g.result <- streamResult{err: fmt.Errorf("failed to receive response: %w", err)}
			return
		}
		for _, result := range resp.Results {
			if result.IsFinal && len(result.Alternatives) > 0 {
				final = append(final, strings.TrimSpace(result.Alternatives[0].Transcript))
			}
		}
	}
}

// EncodingFor guesses the recognition encoding of an uploaded recording from
// its content type or file name
func EncodingFor(contentType, filename string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
		if i := strings.Index(mediaType, ";"); i >= 0 {
			mediaType = mediaType[:i]
		}
	}

	switch mediaType {
	case "audio/webm", "video/webm":
		return "WEBM_OPUS"
	case "audio/ogg", "audio/opus":
		return "OGG_OPUS"
	case "audio/flac", "audio/x-flac":
		return "FLAC"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "LINEAR16"
	case "audio/amr":
		return "AMR"
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".webm":
		return "WEBM_OPUS"
	case ".ogg", ".opus":
		return "OGG_OPUS"
	case ".flac":
		return "FLAC"
	case ".wav":
		return "LINEAR16"
	}
	return "WEBM_OPUS"
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
