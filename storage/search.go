package storage

import (
	"fmt"
	"strings"
)

const previewRunes = 100

// MessageMatch is a cached message containing a search query.
type MessageMatch struct {
	ConversationID string
	Title          string
	Seq            int
	Role           string
	Content        string
	Preview        string
}

// SearchMessages finds cached user and assistant messages containing query,
// case-insensitively. System and error bubbles are skipped.
func (s *TranscriptStore) SearchMessages(query string) ([]MessageMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []MessageMatch{}, nil
	}

	rows, err := s.db.Query(`
	SELECT m.conversation_id, c.title, m.seq, m.role, m.content
	FROM messages m JOIN conversations c ON c.id = m.conversation_id
	WHERE m.role IN ('user', 'assistant') AND instr(lower(m.content), lower(?)) > 0
	ORDER BY c.updated_at DESC, m.seq
	`, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	matches := []MessageMatch{}
	for rows.Next() {
		var m MessageMatch
		if err := rows.Scan(&m.ConversationID, &m.Title, &m.Seq, &m.Role, &m.Content); err != nil {
			return nil, err
		}
		m.Preview = preview(m.Content, query)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// preview returns a single-line excerpt around the first match.
func preview(content, query string) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= previewRunes {
		return flat
	}

	start := 0
	lower := strings.ToLower(flat)
	if idx := strings.Index(lower, strings.ToLower(query)); idx > 0 {
		start = len([]rune(lower[:idx])) - previewRunes/4
		if start < 0 {
			start = 0
		}
	}
	end := start + previewRunes
	if end > len(runes) {
		end = len(runes)
		start = max(0, end-previewRunes)
	}

	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}
