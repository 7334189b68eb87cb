package tool

import (
	"context"
	"fmt"
	"os"
	"strings"

	openaisdk "github.com/openai/openai-go"
)

const ToolSpeechToText = "speech_to_text"

type SpeechToTextInput struct {
	FilePath string `json:"file_path" jsonschema:"description=Path of the audio file to transcribe"`
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// WhisperTranscriber transcribes through the OpenAI audio API.
type WhisperTranscriber struct {
	client *openaisdk.Client
	model  string
}

func NewWhisperTranscriber(client *openaisdk.Client, model string) *WhisperTranscriber {
	if strings.TrimSpace(model) == "" {
		model = string(openaisdk.AudioModelWhisper1)
	}
	return &WhisperTranscriber{client: client, model: model}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	resp, err := w.client.Audio.Transcriptions.New(ctx, openaisdk.AudioTranscriptionNewParams{
		File:  f,
		Model: openaisdk.AudioModel(w.model),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return resp.Text, nil
}

func speechToText(t Transcriber) func(context.Context, SpeechToTextInput) (string, error) {
	return func(ctx context.Context, in SpeechToTextInput) (string, error) {
		path := strings.TrimSpace(in.FilePath)
		if path == "" {
			return "Error: file_path es obligatorio", nil
		}
		text, err := t.Transcribe(ctx, path)
		if err != nil {
			return "Error en la transcripción: " + err.Error(), nil
		}
		return text, nil
	}
}
