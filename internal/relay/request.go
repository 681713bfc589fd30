package relay

import (
	"encoding/base64"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/sqs-webhook-relay/internal/models"
)

const (
	attrBodyIsBase64 = "BodyIsBase64"

	headerContentType  = "content-type"
	headerSignature    = "x-hub-signature-256"
	headerForwardedFor = "x-forwarded-for"
)

// OutboundRequest is the reconstruction of the HTTP request the upstream
// caller originally sent. Header keys are normalized to lowercase; the body
// holds the exact original octets whenever the base64 flag and encoding are
// correct, which is what downstream signature verification depends on.
type OutboundRequest struct {
	Body     []byte
	Headers  map[string]string
	SourceIP string
}

// BuildRequest converts a queue message into an outbound request: it recovers
// the original payload bytes, turns attributes into headers and derives a
// best-effort client IP for the forwarded-for header.
func BuildRequest(msg *models.Message, logger zerolog.Logger) *OutboundRequest {
	body := decodeBody(msg, logger)

	headers := make(map[string]string, len(msg.Attributes)+2)
	sourceIP := ""

	for k, v := range msg.Attributes {
		key := strings.ToLower(strings.TrimSpace(k))
		if !validHeaderName(key) {
			logger.Debug().Str("attribute", k).Msg("relay: skipping attribute with invalid header name")
			continue
		}
		headers[key] = v
		if sourceIP == "" && isIPAttribute(key) {
			sourceIP = v
		}
	}

	if _, ok := headers[headerContentType]; !ok {
		headers[headerContentType] = "application/json"
	}
	if _, ok := headers[headerSignature]; !ok {
		logger.Warn().Msg("relay: message missing x-hub-signature-256 attribute; signature verification will fail")
	}

	if sourceIP == "" {
		sourceIP = extractIPFromBody(body)
	}
	if sourceIP != "" {
		if existing, ok := headers[headerForwardedFor]; ok {
			headers[headerForwardedFor] = existing + ", " + sourceIP
		} else {
			headers[headerForwardedFor] = sourceIP
		}
	}

	return &OutboundRequest{
		Body:     body,
		Headers:  headers,
		SourceIP: sourceIP,
	}
}

// decodeBody recovers the original payload octets. A failed base64 decode is
// non-fatal: the raw text is forwarded as UTF-8 bytes instead.
func decodeBody(msg *models.Message, logger zerolog.Logger) []byte {
	flag, ok := msg.Attribute(attrBodyIsBase64)
	if !ok || !strings.EqualFold(flag, "true") {
		return []byte(msg.Body)
	}

	decoded, err := base64.StdEncoding.DecodeString(msg.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("relay: BodyIsBase64=true but base64 decode failed, falling back to raw bytes")
		return []byte(msg.Body)
	}
	return decoded
}

var ipAttributeNames = []string{
	"sourceip", "source-ip",
	"clientip", "client-ip",
	"originatingip", "originating-ip",
	"remote-addr",
	"x-real-ip",
}

func isIPAttribute(key string) bool {
	for _, name := range ipAttributeNames {
		if key == name {
			return true
		}
	}
	return false
}

// validHeaderName reports whether the key is a legal HTTP header field name
// (RFC 7230 token characters).
func validHeaderName(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		if !isTokenChar(key[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}
