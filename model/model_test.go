package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	m, err := DecodeMessage(`{"id":"m1","conversation_id":"c1","role":"function_call","content":"",
		"mcp_tool_use":{"id":"t1","name":"search","args":{"q":"go","n":2,"exact":true,"lang":null},"state":"pending"}}`)
	require.NoError(t, err)
	assert.Equal(t, RoleFunctionCall, m.Role)
	require.NotNil(t, m.ToolUse)
	assert.Equal(t, "search", m.ToolUse.Name)
	assert.Equal(t, float64(2), m.ToolUse.Args["n"])
	assert.Equal(t, true, m.ToolUse.Args["exact"])
	assert.Nil(t, m.ToolUse.Args["lang"])
	assert.True(t, m.BlocksInput())

	plain, err := DecodeMessage(`{"id":"m2","role":"assistant","content":"hi","mcp_tool_use":null}`)
	require.NoError(t, err)
	assert.Nil(t, plain.ToolUse)
	assert.False(t, plain.BlocksInput())

	_, err = DecodeMessage(`{"id":`)
	assert.Error(t, err)
}

func TestToolUseStateResolved(t *testing.T) {
	assert.False(t, ToolUsePending.Resolved())
	for _, s := range []ToolUseState{ToolUseApproved, ToolUseRejected, ToolUseCompleted, ToolUseFailed, "running"} {
		assert.True(t, s.Resolved(), s)
	}

	var nilUse *ToolUse
	assert.False(t, nilUse.Pending())
}

func TestRoleIsError(t *testing.T) {
	assert.True(t, RoleAuthError.IsError())
	assert.True(t, RoleAPIError.IsError())
	assert.False(t, RoleSystem.IsError())
	assert.False(t, RoleAssistant.IsError())
}

func TestConversationDisplayTitle(t *testing.T) {
	empty := ""
	title := "Trip"
	assert.Equal(t, "New conversation", Conversation{}.DisplayTitle())
	assert.Equal(t, "New conversation", Conversation{Title: &empty}.DisplayTitle())
	assert.Equal(t, "Trip", Conversation{Title: &title}.DisplayTitle())
}

func TestMCPConfigHeaders(t *testing.T) {
	cfg := MCPConfig{Configuration: map[string]any{
		"headers": map[string]any{"Authorization": "Bearer x", "X-Retries": 3},
	}}
	assert.Equal(t, map[string]string{"Authorization": "Bearer x"}, cfg.Headers())
	assert.Empty(t, MCPConfig{}.Headers())
}

func TestCatalog(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Catalog {
		assert.False(t, seen[m.ID], "duplicate %s", m.ID)
		seen[m.ID] = true
		assert.Contains(t, []string{ProviderOpenAI, ProviderAnthropic, ProviderGoogle}, m.Provider)
	}

	m, ok := FindModel("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, ProviderOpenAI, m.Provider)
	_, ok = FindModel("llama3")
	assert.False(t, ok)
}

func TestModelsForProviders(t *testing.T) {
	assert.Empty(t, ModelsForProviders(nil))

	got := ModelsForProviders([]string{ProviderAnthropic})
	require.Len(t, got, 2)
	assert.Equal(t, "claude-3-7-sonnet-latest", got[0].ID)

	all := ModelsForProviders([]string{ProviderGoogle, ProviderOpenAI, ProviderAnthropic})
	assert.Len(t, all, len(Catalog))
	assert.Equal(t, Catalog[0].ID, all[0].ID)
}

func TestProvidersAndKeyFor(t *testing.T) {
	keys := []APIKeyRef{
		{ID: "k1", Provider: ProviderOpenAI},
		{ID: "k2", Provider: ProviderGoogle},
		{ID: "k3", Provider: ProviderOpenAI},
	}
	assert.Equal(t, []string{ProviderOpenAI, ProviderGoogle}, Providers(keys))

	k, ok := KeyFor(keys, ProviderOpenAI)
	require.True(t, ok)
	assert.Equal(t, "k1", k.ID)
	_, ok = KeyFor(keys, ProviderAnthropic)
	assert.False(t, ok)
}
