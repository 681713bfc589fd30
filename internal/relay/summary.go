package relay

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Summary produces a short human readable description of a payload for log
// lines: interesting JSON fields when present, otherwise a bounded text or
// hex preview.
func Summary(body []byte) string {
	if !utf8.Valid(body) {
		return previewHex(body, 24)
	}
	text := string(body)

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err == nil {
		var parts []string
		for _, field := range []string{"type", "event", "action"} {
			if v, ok := doc[field].(string); ok {
				parts = append(parts, field+":"+v)
				break
			}
		}
		if id, ok := doc["id"].(string); ok {
			if len(id) > 12 {
				parts = append(parts, "id:"+id[:8]+"...")
			} else {
				parts = append(parts, "id:"+id)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}

	return previewString(text, 40)
}

func previewString(s string, max int) string {
	if len(s) > max {
		return fmt.Sprintf("%s... (%d chars)", s[:max], len(s))
	}
	return s
}

func previewHex(b []byte, maxBytes int) string {
	n := len(b)
	if n > maxBytes {
		return fmt.Sprintf("hex:%x... (%d bytes)", b[:maxBytes], n)
	}
	return fmt.Sprintf("hex:%x (%d bytes)", b, n)
}
