// Package ark builds Volcengine Ark chat models.
package ark

import (
	"context"
	"errors"
	"fmt"
	"strings"

	arkmodel "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

type Config struct {
	APIKey      string   `envconfig:"API_KEY" split_words:"true"`
	AccessKey   string   `envconfig:"ACCESS_KEY" split_words:"true"`
	SecretKey   string   `envconfig:"SECRET_KEY" split_words:"true"`
	Model       string   `envconfig:"MODEL" split_words:"true"`
	BaseURL     string   `envconfig:"BASE_URL" split_words:"true" default:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `envconfig:"REGION" split_words:"true" default:"cn-beijing"`
	Temperature *float32 `envconfig:"TEMPERATURE" split_words:"true"`
	MaxTokens   *int     `envconfig:"MAX_TOKENS" split_words:"true"`
}

// Enabled reports whether credentials and a model are present.
func (c Config) Enabled() bool {
	hasKey := strings.TrimSpace(c.APIKey) != "" ||
		(strings.TrimSpace(c.AccessKey) != "" && strings.TrimSpace(c.SecretKey) != "")
	return strings.TrimSpace(c.Model) != "" && hasKey
}

func (c Config) New(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("ark: credentials or model missing, set ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	m, err := arkmodel.NewChatModel(ctx, &arkmodel.ChatModelConfig{
		BaseURL:     strings.TrimSpace(c.BaseURL),
		Region:      strings.TrimSpace(c.Region),
		APIKey:      strings.TrimSpace(c.APIKey),
		AccessKey:   strings.TrimSpace(c.AccessKey),
		SecretKey:   strings.TrimSpace(c.SecretKey),
		Model:       strings.TrimSpace(c.Model),
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("ark: create chat model: %w", err)
	}
	return m, nil
}
