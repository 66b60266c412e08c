package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type post struct {
	replyTo string
	text    string
}

type fakePlatform struct {
	mu        sync.Mutex
	posts     []post
	typing    int
	typingErr error
	sendErr   error
}

func (f *fakePlatform) Send(ctx context.Context, text string) (string, error) {
	return f.record("", text)
}

func (f *fakePlatform) Reply(ctx context.Context, messageID, text string) (string, error) {
	return f.record(messageID, text)
}

func (f *fakePlatform) Typing(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return f.typingErr
}

func (f *fakePlatform) record(replyTo, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.posts = append(f.posts, post{replyTo: replyTo, text: text})
	return fmt.Sprintf("m%d", len(f.posts)), nil
}

type countingPacer struct {
	calls  int
	signal bool
}

func (p *countingPacer) BetweenChunks(ctx context.Context, signal func(context.Context)) error {
	p.calls++
	if p.signal {
		signal(ctx)
	}
	return nil
}

func TestMessenger_ReplyOnce(t *testing.T) {
	p := &fakePlatform{}
	m := NewMessenger(p, WithReplyTo("in-1"))
	ctx := context.Background()

	d, err := m.Deliver(ctx, "first\n")
	require.NoError(t, err)
	assert.True(t, d.Replied)
	assert.Equal(t, []string{"m1"}, d.MessageIDs)

	d, err = m.Deliver(ctx, "second\n")
	require.NoError(t, err)
	assert.False(t, d.Replied)

	require.Len(t, p.posts, 2)
	assert.Equal(t, "in-1", p.posts[0].replyTo)
	assert.Empty(t, p.posts[1].replyTo)
	assert.Equal(t, 2, m.Sent())
	assert.True(t, m.Replied())
	assert.Equal(t, []string{"m1", "m2"}, m.MessageIDs())
}

func TestMessenger_NoReplyTarget(t *testing.T) {
	p := &fakePlatform{}
	m := NewMessenger(p)

	d, err := m.Deliver(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, d.Replied)
	require.Len(t, p.posts, 1)
	assert.Empty(t, p.posts[0].replyTo)
}

func TestMessenger_SplitsAndPaces(t *testing.T) {
	p := &fakePlatform{}
	pacer := &countingPacer{signal: true}
	m := NewMessenger(p, WithMaxMessageSize(10), WithPacer(pacer))

	d, err := m.Deliver(context.Background(), "aaaa bbbb cccc dddd")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Chunks)
	assert.Equal(t, 1, pacer.calls)
	assert.Equal(t, 1, p.typing)
	assert.Equal(t, "aaaa bbbb ", p.posts[0].text)
	assert.Equal(t, "cccc dddd", p.posts[1].text)
}

func TestMessenger_SkipsBlank(t *testing.T) {
	p := &fakePlatform{}
	m := NewMessenger(p)

	d, err := m.Deliver(context.Background(), "  \n ")
	require.NoError(t, err)
	assert.Zero(t, d.Chunks)
	assert.Empty(t, p.posts)
	assert.Zero(t, m.Sent())
}

func TestMessenger_NoPauseBeforeFirstSentChunk(t *testing.T) {
	p := &fakePlatform{}
	pacer := &countingPacer{}
	m := NewMessenger(p, WithMaxMessageSize(10), WithPacer(pacer))

	// The first window is all spaces and is skipped.
	d, err := m.Deliver(context.Background(), strings.Repeat(" ", 10)+"\nhello world")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Chunks)
	assert.Equal(t, 1, pacer.calls)
	require.Len(t, p.posts, 2)
	assert.Equal(t, "\nhello ", p.posts[0].text)
	assert.Equal(t, "world", p.posts[1].text)
}

func TestMessenger_SendError(t *testing.T) {
	boom := errors.New("boom")
	m := NewMessenger(&fakePlatform{sendErr: boom})

	_, err := m.Deliver(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, m.Replied())
}

func TestMessenger_TypingErrorIgnored(t *testing.T) {
	p := &fakePlatform{typingErr: errors.New("rate limited")}
	m := NewMessenger(p)

	assert.NotPanics(t, func() { m.SignalActivity(context.Background()) })
	assert.Equal(t, 1, p.typing)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{name: "empty", text: "", size: 10, want: nil},
		{name: "fits", text: "short", size: 10, want: []string{"short"}},
		{name: "prefers newline", text: "line one\nline two", size: 12, want: []string{"line one\n", "line two"}},
		{name: "falls back to space", text: "aaaaa bbbbb ccc", size: 12, want: []string{"aaaaa bbbbb ", "ccc"}},
		{name: "hard cut", text: "abcdefghij", size: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "counts runes", text: "ééééé", size: 5, want: []string{"ééééé"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.text, tt.size))
		})
	}
}

func TestSplit_RebalancesFences(t *testing.T) {
	var b strings.Builder
	b.WriteString("Here is the code:\n```go\n")
	for i := range 20 {
		fmt.Fprintf(&b, "fmt.Println(%d)\n", i)
	}
	b.WriteString("```\nDone.\n")
	text := b.String()

	chunks := Split(text, 80)
	require.Greater(t, len(chunks), 2)

	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 80, "chunk %d", i)
		assert.Equal(t, 0, strings.Count(c, "```")%2, "chunk %d leaves a fence open: %q", i, c)
	}
	for _, c := range chunks[1 : len(chunks)-1] {
		assert.True(t, strings.HasPrefix(c, "```go\n"), "reopened with info string: %q", c)
	}

	joined := strings.Join(chunks, "")
	for i := range 20 {
		assert.Contains(t, joined, fmt.Sprintf("fmt.Println(%d)\n", i))
	}
	assert.True(t, strings.HasSuffix(joined, "Done.\n"))
}

func TestSplit_DefaultSize(t *testing.T) {
	text := strings.Repeat("x", DefaultMaxMessageSize+1)
	chunks := Split(text, 0)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], DefaultMaxMessageSize)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, "parley")
	m := NewMessenger(c, WithReplyTo("you"))
	ctx := context.Background()

	d, err := m.Deliver(ctx, "hello there")
	require.NoError(t, err)
	require.Len(t, d.MessageIDs, 1)
	assert.Len(t, d.MessageIDs[0], 36)

	out := buf.String()
	assert.Contains(t, out, "parley")
	assert.Contains(t, out, "↳ you")
	assert.Contains(t, out, "hello there")

	buf.Reset()
	require.NoError(t, c.Typing(ctx))
	assert.Empty(t, buf.String())

	c.ShowTyping = true
	require.NoError(t, c.Typing(ctx))
	assert.Contains(t, buf.String(), "parley is typing")
}

func TestConsole_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewConsole(&bytes.Buffer{}, "p").Send(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
