// Package sink delivers finished segments to a chat platform.
package sink

import (
	"context"
	"errors"
)

// ErrClosed is returned when delivering through a closed platform.
var ErrClosed = errors.New("sink: platform closed")

// Delivery reports what a Deliver call produced.
type Delivery struct {
	// MessageIDs lists the platform message ids, one per chunk.
	MessageIDs []string
	// Chunks is the number of platform messages sent.
	Chunks int
	// Replied is true when the first chunk was sent as a reply.
	Replied bool
}

// Sink receives finished segments from the orchestrator.
type Sink interface {
	// Deliver sends text, splitting it into platform-sized chunks.
	Deliver(ctx context.Context, text string) (Delivery, error)

	// SignalActivity shows a typing indicator. It never fails; errors are
	// logged by the implementation.
	SignalActivity(ctx context.Context)
}

// Platform is a chat transport.
type Platform interface {
	// Send posts a new message and returns its id.
	Send(ctx context.Context, text string) (string, error)

	// Reply posts a message in reply to messageID and returns its id.
	Reply(ctx context.Context, messageID, text string) (string, error)

	// Typing shows a transient activity indicator.
	Typing(ctx context.Context) error
}

// Pacer inserts pauses between the chunks of one delivery.
// *pacing.Simulator satisfies it.
type Pacer interface {
	BetweenChunks(ctx context.Context, signal func(context.Context)) error
}
