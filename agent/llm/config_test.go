package llm

import (
	"errors"
	"testing"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
)

func testConfig() Config {
	return Config{
		BaseURL:            "https://api.openai.com/v1",
		APIKey:             " sk-test ",
		MaxCompletionToken: 512,
		GPT35Model:         "gpt-3.5-turbo",
		GPT4Model:          "gpt-4",
		ZephyrModel:        "HuggingFaceH4/zephyr-7b-beta",
		ZephyrBaseURL:      "https://router.huggingface.co/v1",
		MistralModel:       "mistral",
		MistralBaseURL:     "http://localhost:11434/v1",
	}
}

func TestOpenRouterForGPT(t *testing.T) {
	t.Parallel()

	cfg, err := testConfig().OpenRouterFor(contractx.ModelGPT35)
	if err != nil {
		t.Fatalf("OpenRouterFor() error = %v", err)
	}
	if cfg.Model != "gpt-3.5-turbo" || cfg.APIKey != "sk-test" || cfg.BaseURL != "https://api.openai.com/v1" {
		t.Fatalf("unexpected config: %#v", cfg)
	}
	if cfg.MaxCompletionToken == nil || *cfg.MaxCompletionToken != 512 {
		t.Fatalf("unexpected max tokens: %v", cfg.MaxCompletionToken)
	}
}

func TestOpenRouterForMistralUsesLocalEndpoint(t *testing.T) {
	t.Parallel()

	cfg, err := testConfig().OpenRouterFor(contractx.ModelMistral)
	if err != nil {
		t.Fatalf("OpenRouterFor() error = %v", err)
	}
	if cfg.BaseURL != "http://localhost:11434/v1" || cfg.Model != "mistral" {
		t.Fatalf("unexpected config: %#v", cfg)
	}
}

func TestOpenRouterForZephyrNeedsToken(t *testing.T) {
	t.Parallel()

	_, err := testConfig().OpenRouterFor(contractx.ModelZephyr)
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	c := testConfig()
	c.ZephyrAPIKey = "hf_token"
	cfg, err := c.OpenRouterFor(contractx.ModelZephyr)
	if err != nil {
		t.Fatalf("OpenRouterFor() error = %v", err)
	}
	if cfg.APIKey != "hf_token" || cfg.BaseURL != "https://router.huggingface.co/v1" {
		t.Fatalf("unexpected config: %#v", cfg)
	}
}

func TestOpenRouterForUnsupported(t *testing.T) {
	t.Parallel()

	_, err := testConfig().OpenRouterFor(contractx.ModelDoubao)
	if !errors.Is(err, contractx.ErrUnsupportedModel) {
		t.Fatalf("expected ErrUnsupportedModel, got %v", err)
	}
}
