package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
	openrouterx "github.com/JRealValdes/jarvis/pkg/openrouter"
)

// Config describes the OpenAI-compatible endpoints behind each model kind.
// GPT kinds share the default endpoint; Zephyr goes through the
// HuggingFace router and Mistral through a local Ollama server.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"1024"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	GPT35Model string `envconfig:"GPT35_MODEL" default:"gpt-3.5-turbo"`
	GPT4Model  string `envconfig:"GPT4_MODEL" default:"gpt-4"`

	ZephyrModel   string `envconfig:"ZEPHYR_MODEL" split_words:"true" default:"HuggingFaceH4/zephyr-7b-beta"`
	ZephyrBaseURL string `envconfig:"ZEPHYR_BASE_URL" split_words:"true" default:"https://router.huggingface.co/v1"`
	ZephyrAPIKey  string `envconfig:"ZEPHYR_API_KEY" split_words:"true"`

	MistralModel   string `envconfig:"MISTRAL_MODEL" split_words:"true" default:"mistral"`
	MistralBaseURL string `envconfig:"MISTRAL_BASE_URL" split_words:"true" default:"http://localhost:11434/v1"`

	WhisperModel string `envconfig:"WHISPER_MODEL" split_words:"true" default:"whisper-1"`
}

func (c Config) Validate() error {
	if c.MaxCompletionToken <= 0 {
		return fmt.Errorf("%w: max completion token must be > 0", contractx.ErrValidation)
	}
	if c.Temperature < 0 {
		return fmt.Errorf("%w: temperature must be >= 0", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor returns the endpoint configuration for kind. Kinds served
// by other providers are reported as unsupported.
func (c Config) OpenRouterFor(kind contractx.ModelKind) (openrouterx.Config, error) {
	baseURL := strings.TrimSpace(c.BaseURL)
	apiKey := strings.TrimSpace(c.APIKey)
	var modelName string

	switch kind {
	case contractx.ModelGPT35:
		modelName = c.GPT35Model
	case contractx.ModelGPT4:
		modelName = c.GPT4Model
	case contractx.ModelZephyr:
		modelName = c.ZephyrModel
		baseURL = strings.TrimSpace(c.ZephyrBaseURL)
		apiKey = strings.TrimSpace(c.ZephyrAPIKey)
	case contractx.ModelMistral:
		modelName = c.MistralModel
		baseURL = strings.TrimSpace(c.MistralBaseURL)
		// Ollama ignores the key but the client requires one.
		apiKey = "ollama"
	default:
		return openrouterx.Config{}, fmt.Errorf("%w: %q has no openai-compatible endpoint", contractx.ErrUnsupportedModel, kind)
	}

	if apiKey == "" {
		return openrouterx.Config{}, fmt.Errorf("%w: api key for %s is not configured", contractx.ErrValidation, kind)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            baseURL,
		APIKey:             apiKey,
		Model:              strings.TrimSpace(modelName),
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        c.Temperature,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}, nil
}
