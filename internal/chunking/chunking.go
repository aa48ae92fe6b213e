// Package chunking partitions a markdown document into ordered, bounded-size
// translation units. Boundaries fall on line breaks, preferring structural
// break points (headings) so a section is not split right after its title.
package chunking

import "strings"

// DefaultMaxSize defines a reasonable chunk size if not configured.
// Sized for one chat-completion request with room for the prompt.
const DefaultMaxSize = 8000

// Split partitions text into ordered chunks whose accumulated length (each
// line plus one separator) stays within maxSize. Rules when a line would
// overflow the current chunk:
//
//   - a heading line closes the current chunk and opens the next one, keeping
//     the heading attached to the section it introduces;
//   - any other line is appended to the current chunk anyway and the chunk is
//     closed immediately, accepting one slightly-over-limit chunk rather than
//     orphaning a line.
//
// Blank-only chunks are dropped. Empty input yields an empty slice.
// Joining the result with "\n\n" preserves original line content and order.
func Split(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	lines := strings.Split(text, "\n")
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = nil
			currentLen = 0
		}
	}

	for _, line := range lines {
		lineLen := len(line) + 1
		isHeading := strings.HasPrefix(line, "#")

		if currentLen+lineLen > maxSize && len(current) > 0 {
			if isHeading {
				flush()
				current = []string{line}
				currentLen = lineLen
			} else {
				current = append(current, line)
				flush()
			}
		} else {
			current = append(current, line)
			currentLen += lineLen
		}
	}
	flush()

	// Drop chunks that are whitespace only; they carry no translatable content.
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
