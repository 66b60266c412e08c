package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/parley/provider"
)

func stores() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemory() },
		"badger": func(t *testing.T) Store {
			b, err := OpenBadger(BadgerOptions{
				InMemory: true,
				Logger:   slog.New(slog.DiscardHandler),
			})
			require.NoError(t, err)
			return b
		},
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	call := &provider.FunctionCall{ID: "call-1", Name: "current_time", Arguments: `{}`}

	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			t.Run("empty conversation", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				msgs, err := s.Load(ctx, "nobody", 0)
				require.NoError(t, err)
				assert.Empty(t, msgs)
			})

			t.Run("append and load in order", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				require.NoError(t, s.Append(ctx, "c1", provider.UserMessage("hi")))
				require.NoError(t, s.Append(ctx, "c1",
					provider.AssistantCallMessage("let me check", call),
					provider.ToolMessage(call, "12:00"),
					provider.AssistantMessage("It is noon."),
				))

				msgs, err := s.Load(ctx, "c1", 0)
				require.NoError(t, err)
				assert.Equal(t, []provider.Message{
					provider.UserMessage("hi"),
					provider.AssistantCallMessage("let me check", call),
					provider.ToolMessage(call, "12:00"),
					provider.AssistantMessage("It is noon."),
				}, msgs)
			})

			t.Run("limit keeps the tail", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				for i := range 10 {
					require.NoError(t, s.Append(ctx, "c", provider.UserMessage(fmt.Sprintf("m%d", i))))
				}
				msgs, err := s.Load(ctx, "c", 3)
				require.NoError(t, err)
				assert.Equal(t, []provider.Message{
					provider.UserMessage("m7"),
					provider.UserMessage("m8"),
					provider.UserMessage("m9"),
				}, msgs)
			})

			t.Run("window drops orphaned tool results", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				require.NoError(t, s.Append(ctx, "c",
					provider.UserMessage("time?"),
					provider.AssistantCallMessage("", call),
					provider.ToolMessage(call, "12:00"),
					provider.AssistantMessage("Noon."),
				))
				msgs, err := s.Load(ctx, "c", 2)
				require.NoError(t, err)
				assert.Equal(t, []provider.Message{provider.AssistantMessage("Noon.")}, msgs)
			})

			t.Run("conversations are isolated", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				require.NoError(t, s.Append(ctx, "a", provider.UserMessage("for a")))
				require.NoError(t, s.Append(ctx, "a/b", provider.UserMessage("for a/b")))

				msgs, err := s.Load(ctx, "a", 0)
				require.NoError(t, err)
				assert.Equal(t, []provider.Message{provider.UserMessage("for a")}, msgs)
			})

			t.Run("clear", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				require.NoError(t, s.Append(ctx, "c", provider.UserMessage("old")))
				require.NoError(t, s.Clear(ctx, "c"))

				msgs, err := s.Load(ctx, "c", 0)
				require.NoError(t, err)
				assert.Empty(t, msgs)

				require.NoError(t, s.Append(ctx, "c", provider.UserMessage("new")))
				msgs, err = s.Load(ctx, "c", 0)
				require.NoError(t, err)
				assert.Equal(t, []provider.Message{provider.UserMessage("new")}, msgs)
			})

			t.Run("concurrent appends", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				var wg sync.WaitGroup
				for i := range 8 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						assert.NoError(t, s.Append(ctx, "c", provider.UserMessage(fmt.Sprintf("w%d", i))))
					}()
				}
				wg.Wait()

				msgs, err := s.Load(ctx, "c", 0)
				require.NoError(t, err)
				assert.Len(t, msgs, 8)
			})
		})
	}
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())

	_, err := m.Load(context.Background(), "c", 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Append(context.Background(), "c", provider.UserMessage("x")), ErrClosed)
	assert.ErrorIs(t, m.Clear(context.Background(), "c"), ErrClosed)
}

func TestBadger_Persists(t *testing.T) {
	dir := t.TempDir()
	quiet := slog.New(slog.DiscardHandler)

	b, err := OpenBadger(BadgerOptions{Dir: dir, Logger: quiet})
	require.NoError(t, err)
	require.NoError(t, b.Append(context.Background(), "c", provider.UserMessage("remember me")))
	require.NoError(t, b.Close())

	b, err = OpenBadger(BadgerOptions{Dir: dir, Logger: quiet})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Append(context.Background(), "c", provider.AssistantMessage("I do.")))
	msgs, err := b.Load(context.Background(), "c", 0)
	require.NoError(t, err)
	assert.Equal(t, []provider.Message{
		provider.UserMessage("remember me"),
		provider.AssistantMessage("I do."),
	}, msgs)
}

func TestOpenBadger_RequiresDir(t *testing.T) {
	_, err := OpenBadger(BadgerOptions{})
	assert.Error(t, err)
}
