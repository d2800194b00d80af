package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIValidator validates keys against an OpenAI-compatible models endpoint.
// It serves both OpenAI and Gemini.
type OpenAIValidator struct {
	client openai.Client
	name   string
}

// NewOpenAIValidator creates a validator for the OpenAI-compatible API at baseURL.
// name is used in error messages.
func NewOpenAIValidator(name, baseURL, apiKey string) (*OpenAIValidator, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%s base URL is required", name)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key is required", name)
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &OpenAIValidator{client: client, name: name}, nil
}

func (v *OpenAIValidator) ListModels(ctx context.Context) ([]string, error) {
	page, err := v.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s models: %w", v.name, err)
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		// Gemini reports ids as "models/<id>"
		ids = append(ids, strings.TrimPrefix(m.ID, "models/"))
	}
	return ids, nil
}

// Validate lists models; any successful response means the key works.
func (v *OpenAIValidator) Validate(ctx context.Context) error {
	if _, err := v.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%s rejected the key: %w", v.name, err)
	}
	return nil
}
