// Package provider checks LLM provider API keys before they are uploaded to
// the chat backend.
//
// The backend performs all generation; the client only needs to know that a
// key is accepted by its provider. Each supported provider has a Validator
// built on the provider's official SDK:
//
//   - openai: OpenAI API (openai-go)
//   - google: Gemini through its OpenAI-compatible endpoint (openai-go)
//   - anthropic: Anthropic API (anthropic-sdk-go)
//
// Usage:
//
//	v, err := provider.NewValidator(provider.Config{
//	    Provider: model.ProviderOpenAI,
//	    APIKey:   "sk-...",
//	})
//	if err != nil {
//	    // unknown provider or empty key
//	}
//	err = v.Validate(ctx)
package provider

import "context"

// Validator checks a provider credential.
type Validator interface {
	// Validate returns nil if the provider accepts the key.
	Validate(ctx context.Context) error
	// ListModels returns the model ids the key can see.
	ListModels(ctx context.Context) ([]string, error)
}

// Config identifies a provider and the key to check.
type Config struct {
	Provider string
	BaseURL  string // empty for the provider's public endpoint
	APIKey   string
}

const (
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultGoogleBaseURL    = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
)
