package agent

// Text-scan fallback for recovering a preview id from a rendered agent
// response. The structured path (reading preview_id from the
// create_payment_preview tool result) is preferred; this exists only for
// compatibility with chat-style response streams where tool results have
// already been flattened into text.

import (
	"encoding/json"
	"regexp"

	"github.com/google/uuid"
)

var (
	uuidPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	jsonPattern = regexp.MustCompile(`\{[^{}]+\}`)
)

// ExtractPreviewID scans rendered text for a preview identifier: first a
// UUID-shaped token, then a preview_id field inside an embedded JSON
// fragment. Returns "" when neither is found.
func ExtractPreviewID(text string) string {
	if m := uuidPattern.FindString(text); m != "" {
		if id, err := uuid.Parse(m); err == nil {
			return id.String()
		}
	}

	for _, fragment := range jsonPattern.FindAllString(text, -1) {
		var payload struct {
			PreviewID string `json:"preview_id"`
		}
		if err := json.Unmarshal([]byte(fragment), &payload); err == nil && payload.PreviewID != "" {
			return payload.PreviewID
		}
	}
	return ""
}
