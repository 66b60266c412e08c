// Package segment turns streamed text into deliverable segments.
//
// The Engine accumulates fragments and decides, one pass at a time, whether
// a prefix of the buffer is ready to go out. Fenced code blocks are kept
// whole so a chat platform never renders half a fence; prose goes out at line
// breaks (and optionally at sentence ends) so it reaches the user promptly.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const fence = "```"

// Defaults for Config.
const (
	DefaultFlushSize     = 1500
	DefaultCodeBlockSize = 3800
)

// Config controls flush thresholds.
type Config struct {
	// FlushSize is the buffer length above which prose with no natural
	// break is force-flushed.
	FlushSize int
	// CodeBlockSize is the buffer length above which an unterminated code
	// block is force-flushed.
	CodeBlockSize int
	// SentenceFlush enables flushing at sentence-ending punctuation.
	SentenceFlush bool
}

// DefaultConfig returns the default thresholds with sentence flushing off.
func DefaultConfig() Config {
	return Config{
		FlushSize:     DefaultFlushSize,
		CodeBlockSize: DefaultCodeBlockSize,
	}
}

// Break classifies why a segment was cut.
type Break int

const (
	// BreakNewline cuts after a line break.
	BreakNewline Break = iota
	// BreakSentence cuts after sentence-ending punctuation.
	BreakSentence
	// BreakBeforeFence cuts the prose preceding an opening fence.
	BreakBeforeFence
	// BreakCodeBlock emits a complete fenced block.
	BreakCodeBlock
	// BreakOverflow force-flushes prose that grew past FlushSize.
	BreakOverflow
	// BreakCodeOverflow force-flushes a code block that grew past
	// CodeBlockSize without a closing fence.
	BreakCodeOverflow
	// BreakFinal emits whatever remains when the stream ends.
	BreakFinal
	// BreakIncompleteCode is a final flush of an unterminated code block.
	BreakIncompleteCode
)

func (b Break) String() string {
	switch b {
	case BreakNewline:
		return "newline"
	case BreakSentence:
		return "sentence"
	case BreakBeforeFence:
		return "before_fence"
	case BreakCodeBlock:
		return "code_block"
	case BreakOverflow:
		return "overflow"
	case BreakCodeOverflow:
		return "code_overflow"
	case BreakFinal:
		return "final"
	case BreakIncompleteCode:
		return "incomplete_code"
	default:
		return "unknown"
	}
}

// Forced reports whether the break was a size valve or an end-of-stream
// flush rather than a natural boundary.
func (b Break) Forced() bool {
	switch b {
	case BreakOverflow, BreakCodeOverflow, BreakFinal, BreakIncompleteCode:
		return true
	}
	return false
}

// Segment is a span of text ready for delivery.
type Segment struct {
	Text  string
	Break Break
}

// Engine is the segmentation state machine. It is not safe for concurrent
// use; one session owns one engine.
type Engine struct {
	cfg    Config
	buf    string
	inCode bool
}

// New creates an engine. Non-positive thresholds fall back to defaults.
func New(cfg Config) *Engine {
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = DefaultFlushSize
	}
	if cfg.CodeBlockSize <= 0 {
		cfg.CodeBlockSize = DefaultCodeBlockSize
	}
	return &Engine{cfg: cfg}
}

// Write appends a text fragment to the buffer.
func (e *Engine) Write(text string) {
	e.buf += text
}

// Pending returns the unflushed buffer.
func (e *Engine) Pending() string {
	return e.buf
}

// Len returns the buffer length in bytes.
func (e *Engine) Len() int {
	return len(e.buf)
}

// InsideCodeBlock reports whether the buffer begins with an unterminated
// fence.
func (e *Engine) InsideCodeBlock() bool {
	return e.inCode
}

// Reset discards all state.
func (e *Engine) Reset() {
	e.buf = ""
	e.inCode = false
}

// Next runs one pass over the buffer and returns the next ready segment.
// Callers loop until it returns false.
func (e *Engine) Next() (Segment, bool) {
	if e.buf == "" {
		return Segment{}, false
	}
	if e.inCode {
		return e.nextInCode()
	}
	return e.nextOutside()
}

// Flush empties the buffer regardless of boundaries.
func (e *Engine) Flush() (Segment, bool) {
	if e.buf == "" {
		e.inCode = false
		return Segment{}, false
	}
	b := BreakFinal
	if e.inCode || (strings.HasPrefix(e.buf, fence) && closingFence(e.buf) < 0) {
		b = BreakIncompleteCode
	}
	e.inCode = false
	return e.take(len(e.buf), b), true
}

func (e *Engine) nextOutside() (Segment, bool) {
	fenceAt := strings.Index(e.buf, fence)
	limit := len(e.buf)
	if fenceAt >= 0 {
		limit = fenceAt
	}

	// The earliest of line break and sentence end wins. A sentence followed
	// only by whitespace up to the line break keeps that whitespace.
	cut, brk := -1, BreakNewline
	if nl := strings.IndexByte(e.buf[:limit], '\n'); nl >= 0 {
		cut = nl + 1
	}
	if e.cfg.SentenceFlush {
		end := sentenceEnd(e.buf, limit)
		if end > 0 && (cut < 0 || (end < cut && strings.TrimSpace(e.buf[end:cut]) != "")) {
			cut, brk = end, BreakSentence
		}
	}
	if cut > 0 {
		return e.take(cut, brk), true
	}

	switch {
	case fenceAt > 0:
		return e.take(fenceAt, BreakBeforeFence), true
	case fenceAt == 0:
		if end := closingFence(e.buf); end > 0 {
			return e.take(end, BreakCodeBlock), true
		}
		e.inCode = true
		return e.nextInCode()
	}

	if len(e.buf) > e.cfg.FlushSize {
		// A trailing "`" or "``" may be the start of a fence.
		if n := len(e.buf) - trailingBackticks(e.buf); n > 0 {
			return e.take(n, BreakOverflow), true
		}
	}
	return Segment{}, false
}

func (e *Engine) nextInCode() (Segment, bool) {
	if end := closingFence(e.buf); end > 0 {
		e.inCode = false
		return e.take(end, BreakCodeBlock), true
	}
	if len(e.buf) > e.cfg.CodeBlockSize {
		e.inCode = false
		return e.take(len(e.buf), BreakCodeOverflow), true
	}
	return Segment{}, false
}

func (e *Engine) take(n int, b Break) Segment {
	seg := Segment{Text: e.buf[:n], Break: b}
	e.buf = e.buf[n:]
	return seg
}

// closingFence returns the end offset of the fence closing the block that
// opens at offset 0, or -1.
func closingFence(s string) int {
	if len(s) < 2*len(fence) {
		return -1
	}
	i := strings.Index(s[len(fence):], fence)
	if i < 0 {
		return -1
	}
	return len(fence) + i + len(fence)
}

// sentenceEnd returns the offset just past the first sentence-ending mark
// before limit that is followed by whitespace or the end of s, or -1.
// Full-width marks end a sentence on their own.
func sentenceEnd(s string, limit int) int {
	for i, r := range s[:limit] {
		if !isSentencePunct(r) {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next == len(s) || r > unicode.MaxASCII && r != '…' {
			return next
		}
		if nr, _ := utf8.DecodeRuneInString(s[next:]); unicode.IsSpace(nr) {
			return next
		}
	}
	return -1
}

func isSentencePunct(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}

func trailingBackticks(s string) int {
	n := 0
	for n < len(fence)-1 && n < len(s) && s[len(s)-1-n] == '`' {
		n++
	}
	return n
}
