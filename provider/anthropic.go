package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicValidator validates keys against Anthropic's models endpoint.
type AnthropicValidator struct {
	client *anthropic.Client
}

func NewAnthropicValidator(baseURL, apiKey string) (*AnthropicValidator, error) {
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &AnthropicValidator{client: &client}, nil
}

func (v *AnthropicValidator) ListModels(ctx context.Context) ([]string, error) {
	page, err := v.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to list Anthropic models: %w", err)
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Validate lists models instead of sending a message, so checking a key
// costs no tokens.
func (v *AnthropicValidator) Validate(ctx context.Context) error {
	if _, err := v.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return fmt.Errorf("Anthropic rejected the key: %w", err)
	}
	return nil
}
