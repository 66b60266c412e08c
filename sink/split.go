package sink

import (
	"strings"
	"unicode/utf8"
)

const (
	fence      = "```"
	fenceClose = "\n```"
)

// Split breaks text into chunks of at most size runes. Cuts prefer a line
// break, then a space, in the second half of the window. A chunk that ends
// inside a fenced block is closed and the block is reopened, with its info
// string, at the top of the next chunk.
func Split(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultMaxMessageSize
	}
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	limit := size
	if strings.Contains(text, fence) && size > 4*len(fenceClose) {
		limit = size - len(fenceClose)
	}

	var chunks []string
	rest := []rune(text)
	for len(rest) > size {
		cut := cutPoint(rest, limit)
		chunk := string(rest[:cut])
		rest = rest[cut:]

		if open, at, ok := unclosedFence(chunk); ok {
			switch {
			case at > 0 && !strings.Contains(chunk[at:], "\n"):
				// The fence line itself was cut; move it to the next chunk.
				rest = append([]rune(chunk[at:]), rest...)
				chunk = chunk[:at]
			case limit < size && utf8.RuneCountInString(open)+1 < limit/2:
				if strings.HasSuffix(chunk, "\n") {
					chunk += fence
				} else {
					chunk += fenceClose
				}
				rest = append([]rune(open+"\n"), rest...)
			}
		}
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	if len(rest) > 0 {
		chunks = append(chunks, string(rest))
	}
	return chunks
}

// cutPoint returns the rune index to cut r at, at most limit.
func cutPoint(r []rune, limit int) int {
	if limit >= len(r) {
		return len(r)
	}
	half := limit / 2
	for i := limit - 1; i >= half; i-- {
		if r[i] == '\n' {
			return i + 1
		}
	}
	for i := limit - 1; i >= half; i-- {
		if r[i] == ' ' {
			return i + 1
		}
	}
	return limit
}

// unclosedFence reports whether chunk leaves a fenced block open. It returns
// the opening fence line (e.g. "```go") and its byte offset.
func unclosedFence(chunk string) (string, int, bool) {
	if strings.Count(chunk, fence)%2 == 0 {
		return "", 0, false
	}
	at := strings.LastIndex(chunk, fence)
	line := chunk[at:]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	return line, at, true
}
