package flow

import (
	"bytes"
	"strings"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

const (
	tokenPreviewLength = 20
	maxRawBodyLength   = 512
)

// Credentials of the test user.
type Credentials struct {
	Name     string
	Email    string
	Password string
}

// UniqueEmail tags the local part of email with a random suffix
// (teste.flow@gmail.com -> teste.flow+1a2b3c4d@gmail.com) so repeated runs do not collide.
func UniqueEmail(email string) string {
	tag := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email + "+" + tag
	}
	return email[:at] + "+" + tag + email[at:]
}

// renderBody formats a response body for the console.
// JSON bodies are printed in canonical form (RFC 8785: sorted keys, no insignificant whitespace)
// so transcripts from different runs can be diffed; anything else is printed raw, truncated.
func renderBody(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "<empty body>"
	}

	if canonical, err := jcs.Transform(trimmed); err == nil {
		return string(canonical)
	}

	text := strings.ToValidUTF8(string(trimmed), "?")
	if len(text) > maxRawBodyLength {
		text = text[:maxRawBodyLength] + "...(truncated)"
	}
	return text
}

// previewToken shows the first characters of the token only. An empty token prints as "...".
func previewToken(token string) string {
	if len(token) <= tokenPreviewLength {
		return token + "..."
	}
	return token[:tokenPreviewLength] + "..."
}
