// Package extract derives the best-known-so-far HTML document from a
// possibly incomplete accumulated token buffer.
//
// Generation backends are asked to wrap their output in a ```html code
// fence, but during streaming the closing fence is not known until the
// stream ends, and some backends skip the fence entirely. Extract is
// called after every delta and once more after the terminal event, so it
// must be pure and cheap.
package extract

import "strings"

const (
	openMarker  = "```html"
	closeMarker = "```"
)

// Extract returns the current best HTML candidate for the accumulated
// text. Resolution order:
//
//  1. A complete ```html ... ``` block: the trimmed content between the
//     first opening marker and its closing marker.
//  2. An opening marker with no close yet (stream in progress): the
//     trimmed content from just after the opener to the end.
//  3. No fence at all: the trimmed input, assumed to be raw markup.
//
// Once the closing fence arrives the result may shrink relative to the
// previous call, dropping provisionally included trailing backticks.
// Callers must treat that as normal, not as a regression.
func Extract(accumulated string) string {
	start := strings.Index(accumulated, openMarker)
	if start < 0 {
		return strings.TrimSpace(accumulated)
	}

	body := accumulated[start+len(openMarker):]
	// The opener may be followed by a newline that belongs to the fence
	// line, not the document.
	body = strings.TrimPrefix(strings.TrimPrefix(body, "\r\n"), "\n")

	if end := strings.Index(body, closeMarker); end >= 0 {
		return strings.TrimSpace(body[:end])
	}
	return strings.TrimSpace(body)
}
