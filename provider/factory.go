package provider

import (
	"context"
	"fmt"
	"strings"

	"moochat/config"
	"moochat/model"
)

// NewValidator creates the validator for cfg.Provider.
//
// Returns an error if the provider is unknown or the key is empty.
func NewValidator(cfg Config) (Validator, error) {
	key := strings.TrimSpace(cfg.APIKey)
	switch cfg.Provider {
	case model.ProviderOpenAI:
		return NewOpenAIValidator("OpenAI", orDefault(cfg.BaseURL, DefaultOpenAIBaseURL), key)
	case model.ProviderGoogle:
		return NewOpenAIValidator("Google", orDefault(cfg.BaseURL, DefaultGoogleBaseURL), key)
	case model.ProviderAnthropic:
		return NewAnthropicValidator(cfg.BaseURL, key)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// Validate checks apiKey against providerID's public endpoint.
func Validate(ctx context.Context, providerID, apiKey string) error {
	v, err := NewValidator(Config{Provider: providerID, APIKey: apiKey})
	if err != nil {
		return err
	}
	if err := v.Validate(ctx); err != nil {
		return err
	}
	if config.Debug && config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] key for %s validated", providerID)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
