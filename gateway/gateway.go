// Package gateway serves the assistant to websocket chat clients.
//
// A client sends {"type":"message","id":"m1","text":"hi"} and receives
// typing and message frames as the answer streams, then a done frame
// carrying the turn status. Each connection is one conversation unless
// the client names another.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/i2y/parley/assistant"
	"github.com/i2y/parley/sink"
)

const (
	writeTimeout = 10 * time.Second
	maxFrameSize = 64 << 10
)

// Responder answers a turn on a platform. *assistant.Assistant satisfies it.
type Responder interface {
	Respond(ctx context.Context, p sink.Platform, turn assistant.Turn) (assistant.Reply, error)
}

// Expander turns a slash command into the text of a turn.
// *plugin.Commands satisfies it.
type Expander interface {
	Expand(input string) (string, error)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCommands expands messages starting with "/" before they reach the
// responder.
func WithCommands(e Expander) Option {
	return func(s *Server) {
		s.commands = e
	}
}

// WithCheckOrigin sets the origin policy for upgrades. By default only
// same-origin requests are accepted.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// Server is an http.Handler that upgrades requests to chat sessions.
type Server struct {
	responder Responder
	commands  Expander
	upgrader  websocket.Upgrader
	logger    *slog.Logger

	mu     sync.Mutex
	conns  map[*connection]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates a Server.
func NewServer(r Responder, opts ...Option) *Server {
	s := &Server{
		responder: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: slog.Default(),
		conns:  make(map[*connection]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &connection{
		ws:           ws,
		conversation: uuid.NewString(),
	}
	c.logger = s.logger.With("conn", c.conversation, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c.cancel = cancel

	if !s.track(c) {
		_ = ws.Close()
		return
	}
	defer s.untrack(c)

	c.logger.Info("client connected")
	s.serve(ctx, c)
	c.logger.Info("client disconnected")
}

func (s *Server) track(c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *connection) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	_ = c.ws.Close()
	s.wg.Done()
}

// Close disconnects every client and waits for their handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for c := range s.conns {
		c.close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Server) serve(ctx context.Context, c *connection) {
	c.ws.SetReadLimit(maxFrameSize)
	for {
		var in Frame
		if err := c.ws.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("read failed", "error", err)
			}
			return
		}

		switch in.Type {
		case FrameMessage:
			s.turn(ctx, c, in)
		default:
			_ = c.write(ctx, Frame{Type: FrameError, ReplyTo: in.ID, Error: fmt.Sprintf("unknown frame type %q", in.Type)})
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Server) turn(ctx context.Context, c *connection, in Frame) {
	if strings.TrimSpace(in.Text) == "" {
		_ = c.write(ctx, Frame{Type: FrameError, ReplyTo: in.ID, Error: "empty message"})
		return
	}
	text := in.Text
	if s.commands != nil && strings.HasPrefix(strings.TrimSpace(text), "/") {
		expanded, err := s.commands.Expand(text)
		if err != nil {
			_ = c.write(ctx, Frame{Type: FrameError, ReplyTo: in.ID, Error: err.Error()})
			return
		}
		text = expanded
	}
	conversation := in.Conversation
	if conversation == "" {
		conversation = c.conversation
	}

	reply, err := s.responder.Respond(ctx, c, assistant.Turn{
		Conversation: conversation,
		Text:         text,
		MessageID:    in.ID,
		Persona:      in.Persona,
	})
	if err != nil {
		c.logger.Error("turn failed", "error", err)
		_ = c.write(ctx, Frame{Type: FrameError, ReplyTo: in.ID, Error: err.Error()})
		return
	}

	done := Frame{Type: FrameDone, ReplyTo: in.ID, Status: reply.Status.String()}
	if reply.Err != nil {
		done.Error = reply.Err.Error()
	}
	if err := c.write(ctx, done); err != nil {
		c.logger.Warn("writing done frame failed", "error", err)
	}
}

// ListenAndServe serves s at path on addr until ctx ends.
func ListenAndServe(ctx context.Context, addr, path string, s *Server) error {
	mux := http.NewServeMux()
	mux.Handle(path, s)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	_ = s.Close()
	if lerr := <-errc; lerr != nil && !errors.Is(lerr, http.ErrServerClosed) {
		return lerr
	}
	return err
}

// connection is one client socket. It is the sink.Platform turns are
// delivered to.
type connection struct {
	ws           *websocket.Conn
	conversation string
	logger       *slog.Logger
	cancel       context.CancelFunc

	mu sync.Mutex
}

var _ sink.Platform = (*connection)(nil)

func (c *connection) Send(ctx context.Context, text string) (string, error) {
	id := uuid.NewString()
	return id, c.write(ctx, Frame{Type: FrameMessage, ID: id, Text: text})
}

func (c *connection) Reply(ctx context.Context, messageID, text string) (string, error) {
	id := uuid.NewString()
	return id, c.write(ctx, Frame{Type: FrameMessage, ID: id, ReplyTo: messageID, Text: text})
}

func (c *connection) Typing(ctx context.Context) error {
	return c.write(ctx, Frame{Type: FrameTyping})
}

func (c *connection) write(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := c.ws.WriteJSON(f); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return sink.ErrClosed
		}
		return fmt.Errorf("writing %s frame: %w", f.Type, err)
	}
	return nil
}

// close cancels the running turn and closes the socket, which ends the
// read loop.
func (c *connection) close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	_ = c.ws.Close()
}
