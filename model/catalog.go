package model

import "slices"

// Provider names as understood by the backend.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// ModelDescriptor is a static catalog entry.
type ModelDescriptor struct {
	ID            string
	DisplayName   string
	Provider      string
	RequiresKey   bool
	SupportsTools bool
	Reasoning     bool
}

// Catalog lists the models the client offers. Order is display order.
var Catalog = []ModelDescriptor{
	{ID: "gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash", Provider: ProviderGoogle, RequiresKey: true, SupportsTools: true},
	{ID: "gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro", Provider: ProviderGoogle, RequiresKey: true, SupportsTools: true, Reasoning: true},
	{ID: "gpt-4o", DisplayName: "GPT-4o", Provider: ProviderOpenAI, RequiresKey: true, SupportsTools: true},
	{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", Provider: ProviderOpenAI, RequiresKey: true, SupportsTools: true},
	{ID: "o3-mini", DisplayName: "o3-mini", Provider: ProviderOpenAI, RequiresKey: true, SupportsTools: true, Reasoning: true},
	{ID: "claude-3-7-sonnet-latest", DisplayName: "Claude 3.7 Sonnet", Provider: ProviderAnthropic, RequiresKey: true, SupportsTools: true, Reasoning: true},
	{ID: "claude-3-5-haiku-latest", DisplayName: "Claude 3.5 Haiku", Provider: ProviderAnthropic, RequiresKey: true, SupportsTools: true},
}

// FindModel looks a model up by id.
func FindModel(id string) (ModelDescriptor, bool) {
	for _, m := range Catalog {
		if m.ID == id {
			return m, true
		}
	}
	return ModelDescriptor{}, false
}

// ModelsForProviders returns the catalog entries usable with the given providers.
// Models that do not require a key are always included.
func ModelsForProviders(providers []string) []ModelDescriptor {
	var out []ModelDescriptor
	for _, m := range Catalog {
		if !m.RequiresKey || slices.Contains(providers, m.Provider) {
			out = append(out, m)
		}
	}
	return out
}

// Providers returns the distinct providers of the given keys, in order of first appearance.
func Providers(keys []APIKeyRef) []string {
	var out []string
	for _, k := range keys {
		if !slices.Contains(out, k.Provider) {
			out = append(out, k.Provider)
		}
	}
	return out
}

// KeyFor returns the first key reference configured for provider.
func KeyFor(keys []APIKeyRef, provider string) (APIKeyRef, bool) {
	for _, k := range keys {
		if k.Provider == provider {
			return k, true
		}
	}
	return APIKeyRef{}, false
}
