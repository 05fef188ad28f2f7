// Package boundary frames worker output with marker lines so the launcher
// can separate the test body's writes from the test binary's own chatter
// (run headers, PASS/FAIL footers, panic reports).
package boundary

import "strings"

// DefaultMarker is the boundary line printed when no custom marker is set.
const DefaultMarker = "========================================"

// Wrap turns a marker into the exact text printed around the body's output.
// The surrounding newlines keep the marker on its own line even when the
// body ends without one.
func Wrap(marker string) string {
	if marker == "" {
		marker = DefaultMarker
	}

	return "\n" + marker + "\n"
}

// Extract returns the text between the first and second occurrence of the
// wrapped marker in raw. When the second marker is missing — the worker was
// killed or aborted before printing it — everything after the first marker
// is returned. found is false when no marker appears at all, meaning the
// worker entry was never reached.
func Extract(raw, marker string) (out string, found bool) {
	wrapped := Wrap(marker)

	start := strings.Index(raw, wrapped)
	if start < 0 {
		return "", false
	}

	out = raw[start+len(wrapped):]

	if end := strings.Index(out, wrapped); end >= 0 {
		out = out[:end]
	}

	return out, true
}
