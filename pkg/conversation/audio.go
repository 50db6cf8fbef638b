package conversation

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"
)

var (
	dataURIPrefix = regexp.MustCompile(`^data:audio/[^;]+;base64,`)
	base64Shape   = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)
)

// DecodeAudio turns an audio payload from the server into raw bytes. It
// tolerates data URIs, stray whitespace and URL-encoding artifacts, and
// returns nil for anything that still is not valid base64. It never panics
// on hostile input.
func DecodeAudio(payload string) []byte {
	cleaned, ok := cleanBase64(payload)
	if !ok {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil || len(data) == 0 {
		return nil
	}
	return data
}

// AudioDataURL normalizes a payload into a data URI suitable for an <audio>
// element, or "" when the payload cannot be salvaged.
func AudioDataURL(payload string) string {
	cleaned, ok := cleanBase64(payload)
	if !ok {
		return ""
	}
	if _, err := base64.StdEncoding.DecodeString(cleaned); err != nil {
		return ""
	}
	return "data:audio/mpeg;base64," + cleaned
}

// cleanBase64 strips transport noise off a base64 payload and verifies its
// shape (charset plus at most two trailing padding characters) before any
// decode is attempted.
func cleanBase64(payload string) (string, bool) {
	cleaned := strings.TrimSpace(payload)
	if cleaned == "" {
		return "", false
	}

	// Payloads that went through a query string arrive percent-encoded.
	if strings.Contains(cleaned, "%") {
		if unescaped, err := url.QueryUnescape(cleaned); err == nil {
			cleaned = unescaped
		}
	}

	if match := dataURIPrefix.FindString(cleaned); match != "" {
		cleaned = cleaned[len(match):]
	} else if strings.HasPrefix(cleaned, "data:") {
		// A mangled data URI still has its payload after the comma.
		if idx := strings.IndexByte(cleaned, ','); idx >= 0 {
			cleaned = cleaned[idx+1:]
		} else {
			return "", false
		}
	}

	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, cleaned)

	if cleaned == "" || !base64Shape.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}
