package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"moochat/config"
	"moochat/model"
)

// Transcript is the JSON export format of a cached conversation.
type Transcript struct {
	Conversation model.Conversation `json:"conversation"`
	Messages     []model.Message    `json:"messages"`
	ExportedAt   time.Time          `json:"exported_at"`
}

// SanitizeFilename replaces characters that are invalid in file names.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\n', '\r', '\t':
			return '-'
		}
		return r
	}, name)
	name = strings.Trim(name, "-.")

	if r := []rune(name); len(r) > 50 {
		name = string(r[:50])
	}
	if name == "" {
		name = "conversation"
	}
	return name
}

// GenerateExportPath picks ~/Downloads/moochat-<title>-<timestamp>.json.
func GenerateExportPath(title string, now time.Time) string {
	filename := fmt.Sprintf("moochat-%s-%s.json", SanitizeFilename(title), now.Format("20060102-150405"))
	return filepath.Join(config.GetHomeDir(), "Downloads", filename)
}

// ExportJSON writes the cached conversation id to path with 0600 permissions.
func (s *TranscriptStore) ExportJSON(id, path string) error {
	conv, err := s.Conversation(id)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		return fmt.Errorf("conversation %s is not cached", id)
	}
	msgs, err := s.Messages(id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(Transcript{
		Conversation: *conv,
		Messages:     msgs,
		ExportedAt:   s.now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
