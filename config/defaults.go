package config

const (
	DefaultServerURL = "http://localhost:8000"
	DefaultModel     = "gemini-2.0-flash"
)

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/moochat",
		ServerURL:     DefaultServerURL,
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Session: SessionConfig{
			DefaultModel: DefaultModel,
			ToolCalling:  true,
		},
		Security: SecurityConfig{
			CredentialStorage: string(SecurityPlainText),
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# moochat System Configuration
# Location: ~/.config/moochat/settings.toml
# This file uses TOML format: https://toml.io

# Directory where the transcript cache, credentials and user config are stored
data_directory = "~/.local/share/moochat"

# Chat backend root URL (the API is served under /api/v1)
server_url = "` + DefaultServerURL + `"
`
}

func GenerateUserConfigTemplate() string {
	return `# moochat User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Write <data_directory>/debug.log (same as MOOCHAT_DEBUG=1)
debug = false

[session]
# Model selected when the app starts. It is replaced by the first usable model
# if no API key exists for its provider.
default_model = "` + DefaultModel + `"

# Ask reasoning-capable models to think before answering
reasoning = false

# Let models propose calls to your MCP tools (each call needs your approval)
tool_calling = true

[security]
# How the backend login token is stored: "plaintext" or "ssh_key"
credential_storage = "plaintext"

# SSH private key used to derive the encryption key (ssh_key only)
# ssh_key_path = "~/.ssh/id_ed25519"
`
}
