package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
	ServerURL     string `toml:"server_url"`
}

type SessionConfig struct {
	DefaultModel string `toml:"default_model"`
	Reasoning    bool   `toml:"reasoning"`
	ToolCalling  bool   `toml:"tool_calling"`
}

type SecurityConfig struct {
	CredentialStorage string `toml:"credential_storage"`
	SSHKeyPath        string `toml:"ssh_key_path,omitempty"`
}

type UserConfig struct {
	Session  SessionConfig  `toml:"session"`
	Security SecurityConfig `toml:"security"`
	Debug    bool           `toml:"debug"`
}

type Config struct {
	DataDirectory     string
	ServerURL         string
	DefaultModel      string
	Reasoning         bool
	ToolCalling       bool
	CredentialStorage SecurityMethod
	SSHKeyPath        string
	Debug             bool

	// Token comes from MOOCHAT_TOKEN and takes precedence over the credential store.
	Token string
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// DatabasePath is the local transcript cache.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir(), "moochat.db")
}

func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("MOOCHAT_SERVER_URL"); url != "" {
		c.ServerURL = url
	}
	if model := os.Getenv("MOOCHAT_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if dataDir := os.Getenv("MOOCHAT_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if token := os.Getenv("MOOCHAT_TOKEN"); token != "" {
		c.Token = token
	}
	if CheckDebug() {
		c.Debug = true
	}
}

func CheckDebug() bool {
	debug := strings.ToLower(os.Getenv("MOOCHAT_DEBUG"))
	return debug == "true" || debug == "1"
}

// InitDebugLog opens <dataDir>/debug.log when enabled. Failure to open the
// file is reported on stderr and leaves logging off.
func InitDebugLog(dataDir string, enabled bool) {
	if !enabled {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: may contain conversation ids and request paths
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (MOOCHAT_DEBUG=%s) ===", os.Getenv("MOOCHAT_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

// loadDotEnv reads .env from the working directory if present. Variables
// already set in the environment win.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load .env: %w", err)
}

func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}
	cfg := &Config{
		DataDirectory: systemCfg.DataDirectory,
		ServerURL:     systemCfg.ServerURL,
	}
	// the data directory may be moved by env before the user config is read
	if dataDir := os.Getenv("MOOCHAT_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
	}

	userCfg, err := LoadUserConfig(cfg.DataDir())
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.DefaultModel = userCfg.Session.DefaultModel
	cfg.Reasoning = userCfg.Session.Reasoning
	cfg.ToolCalling = userCfg.Session.ToolCalling
	cfg.CredentialStorage = SecurityMethod(userCfg.Security.CredentialStorage)
	cfg.SSHKeyPath = ExpandPath(userCfg.Security.SSHKeyPath)
	cfg.Debug = userCfg.Debug

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is not set (settings.toml or MOOCHAT_SERVER_URL)")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server_url must start with http:// or https://, got %q", c.ServerURL)
	}
	switch c.CredentialStorage {
	case SecurityPlainText:
	case SecuritySSHKey:
		if c.SSHKeyPath == "" {
			return fmt.Errorf("credential_storage is %q but ssh_key_path is empty", c.CredentialStorage)
		}
	default:
		return fmt.Errorf("unknown credential_storage %q", c.CredentialStorage)
	}
	return nil
}

// NewCredentialStore returns the token store selected by the configuration.
func (c *Config) NewCredentialStore() *CredentialStore {
	return NewCredentialStore(c.CredentialStorage, c.SSHKeyPath)
}
