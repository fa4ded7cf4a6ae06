package stt

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
)

// GoogleTranscriber recognizes finalized recordings with Google Cloud
// Speech-to-Text. Recordings arrive complete, so the synchronous
// Recognize API is enough; no streaming session is held open.
type GoogleTranscriber struct {
	languageCode string
}

// NewGoogleTranscriber uses application default credentials; the
// client itself is created per request since recognitions are rare
// relative to connection lifetime.
func NewGoogleTranscriber(languageCode string) *GoogleTranscriber {
	if languageCode == "" {
		languageCode = "en-US"
	}
	return &GoogleTranscriber{languageCode: languageCode}
}

func (g *GoogleTranscriber) Transcribe(ctx context.Context, audioData []byte, mimeType string) (string, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create speech client: %w", err)
	}
	defer client.Close()

	config := &speechpb.RecognitionConfig{
		Encoding:     encodingForMIME(mimeType),
		LanguageCode: g.languageCode,
	}
	// WAV recordings carry their own sample rate in the header; raw
	// MP3 needs it stated.
	if config.Encoding == speechpb.RecognitionConfig_MP3 {
		config.SampleRateHertz = 44100
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: config,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	})
	if err != nil {
		return "", fmt.Errorf("recognize request failed: %w", err)
	}

	var transcript string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			transcript += result.Alternatives[0].Transcript
		}
	}
	return transcript, nil
}

func encodingForMIME(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	switch mimeType {
	case "audio/mpeg":
		return speechpb.RecognitionConfig_MP3
	case "audio/wav":
		return speechpb.RecognitionConfig_LINEAR16
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
