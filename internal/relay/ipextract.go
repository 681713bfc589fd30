package relay

import (
	"encoding/json"
	"strings"
)

// ipBodyPaths is the ordered list of JSON field paths probed for a client IP
// when no message attribute supplied one. Dotted entries descend into nested
// objects. First match wins.
var ipBodyPaths = []string{
	"sourceIp", "source_ip",
	"clientIp", "client_ip",
	"originatingIp", "originating_ip",
	"remoteAddr", "remote_addr",
	"requestContext.identity.sourceIp",
	"headers.x-forwarded-for",
	"headers.x-real-ip",
	"requestInfo.remoteIp",
	"request.ip",
	"ip",
}

// extractIPFromBody attempts to parse the payload as JSON and probe the
// configured field paths for a string value. Returns "" when the payload is
// not JSON or no path matches.
func extractIPFromBody(body []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	for _, path := range ipBodyPaths {
		if v := lookupStringPath(doc, path); v != "" {
			return v
		}
	}
	return ""
}

func lookupStringPath(doc map[string]any, path string) string {
	cur := any(doc)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = obj[part]
		if !ok {
			return ""
		}
	}
	s, _ := cur.(string)
	return s
}
