// Package history stores conversation transcripts between turns.
package history

import (
	"context"
	"errors"

	"github.com/i2y/parley/provider"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("history: store closed")

// Store persists conversation messages keyed by conversation id.
type Store interface {
	// Load returns the most recent messages of a conversation, oldest
	// first. limit <= 0 returns everything.
	Load(ctx context.Context, conversation string, limit int) ([]provider.Message, error)

	// Append adds messages to the end of a conversation.
	Append(ctx context.Context, conversation string, msgs ...provider.Message) error

	// Clear removes a conversation.
	Clear(ctx context.Context, conversation string) error

	Close() error
}

// window returns the tail of msgs bounded by limit. A window never starts
// with a tool result, since providers reject a result without the call
// that produced it.
func window(msgs []provider.Message, limit int) []provider.Message {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	for len(msgs) > 0 && msgs[0].Role == provider.RoleTool {
		msgs = msgs[1:]
	}
	return msgs
}
