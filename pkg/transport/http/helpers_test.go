package http

import (
	"encoding/json"
	"strings"
	"testing"
)

// parseMessages extracts the message signal of every datastar
// patch-signals event in an SSE body.
func parseMessages(t *testing.T, body string) []string {
	t.Helper()
	var msgs []string
	for _, block := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) != 2 || lines[0] != "event: datastar-patch-signals" {
			t.Fatalf("unexpected SSE block %q", block)
		}
		data, ok := strings.CutPrefix(lines[1], "data: signals ")
		if !ok {
			t.Fatalf("unexpected data line %q", lines[1])
		}
		var signals struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(data), &signals); err != nil {
			t.Fatalf("invalid signals JSON %q: %v", data, err)
		}
		msgs = append(msgs, signals.Message)
	}
	return msgs
}
