package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// DefaultMaxMessageSize is the platform message limit in runes.
const DefaultMaxMessageSize = 2000

var _ Sink = (*Messenger)(nil)

// Option configures a Messenger.
type Option func(*Messenger)

// WithReplyTo makes the first chunk a reply to the given message.
func WithReplyTo(messageID string) Option {
	return func(m *Messenger) {
		m.replyTo = messageID
	}
}

// WithMaxMessageSize sets the chunk size limit in runes.
func WithMaxMessageSize(n int) Option {
	return func(m *Messenger) {
		if n > 0 {
			m.maxSize = n
		}
	}
}

// WithPacer sets the pacer used between chunks.
func WithPacer(p Pacer) Option {
	return func(m *Messenger) {
		m.pacer = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Messenger) {
		if l != nil {
			m.logger = l
		}
	}
}

// Messenger implements Sink over a Platform for one conversational turn.
// It remembers whether the turn has replied yet so that a session restarted
// after a tool call continues with plain sends.
type Messenger struct {
	platform Platform
	replyTo  string
	maxSize  int
	pacer    Pacer
	logger   *slog.Logger

	mu      sync.Mutex
	replied bool
	sent    int
	ids     []string
}

// NewMessenger creates a Messenger.
func NewMessenger(p Platform, opts ...Option) *Messenger {
	m := &Messenger{
		platform: p,
		maxSize:  DefaultMaxMessageSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Deliver splits text into chunks and sends them in order.
func (m *Messenger) Deliver(ctx context.Context, text string) (Delivery, error) {
	var d Delivery
	chunks := Split(text, m.maxSize)
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		if d.Chunks > 0 && m.pacer != nil {
			if err := m.pacer.BetweenChunks(ctx, m.SignalActivity); err != nil {
				return d, err
			}
		}

		id, replied, err := m.post(ctx, chunk)
		if err != nil {
			return d, fmt.Errorf("delivering chunk %d/%d: %w", i+1, len(chunks), err)
		}
		d.MessageIDs = append(d.MessageIDs, id)
		d.Chunks++
		d.Replied = d.Replied || replied
	}
	return d, nil
}

func (m *Messenger) post(ctx context.Context, chunk string) (string, bool, error) {
	m.mu.Lock()
	reply := !m.replied && m.replyTo != ""
	m.mu.Unlock()

	var (
		id  string
		err error
	)
	if reply {
		id, err = m.platform.Reply(ctx, m.replyTo, chunk)
	} else {
		id, err = m.platform.Send(ctx, chunk)
	}
	if err != nil {
		return "", false, err
	}

	m.mu.Lock()
	m.replied = true
	m.sent++
	m.ids = append(m.ids, id)
	m.mu.Unlock()
	return id, reply, nil
}

// SignalActivity shows the typing indicator, logging failures.
func (m *Messenger) SignalActivity(ctx context.Context) {
	if err := m.platform.Typing(ctx); err != nil {
		m.logger.Warn("typing indicator failed", "error", err)
	}
}

// Sent returns how many platform messages were posted.
func (m *Messenger) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

// MessageIDs returns the ids of all posted messages.
func (m *Messenger) MessageIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids...)
}

// Replied reports whether the turn has already replied.
func (m *Messenger) Replied() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replied
}
