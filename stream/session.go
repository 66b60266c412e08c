package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"github.com/i2y/parley/provider"
	"github.com/i2y/parley/segment"
)

var errMissingCall = errors.New("function call chunk without payload")

// session is the state of one attempt.
type session struct {
	o       *Orchestrator
	engine  *segment.Engine
	logger  *slog.Logger
	metrics *Metrics
	text    *strings.Builder
	wd      *watchdog

	delivered int
}

func newSession(o *Orchestrator, logger *slog.Logger, metrics *Metrics, text *strings.Builder) *session {
	return &session{
		o:       o,
		engine:  segment.New(o.cfg.Segment),
		logger:  logger,
		metrics: metrics,
		text:    text,
	}
}

// run consumes one upstream stream. It returns the attempt result and the
// number of segments delivered.
func (s *session) run(ctx context.Context, req *provider.Request) (res Result, delivered int) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.wd = startWatchdog(s.o.cfg.InactivityTimeout, cancel)
	defer s.wd.Stop()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session panic",
				"panic", r,
				"buffered", s.engine.Len(),
				"delivered", s.delivered,
				"stack", string(debug.Stack()))
			res = Result{Status: StatusError, Err: s.internalError(fmt.Errorf("panic: %v", r))}
			delivered = s.delivered
		}
	}()

	res = s.consume(ctx, streamCtx, req)
	return res, s.delivered
}

func (s *session) consume(ctx, streamCtx context.Context, req *provider.Request) Result {
	adapter := s.o.adapter

	fs, err := adapter.StartStream(streamCtx, req)
	if err != nil {
		if s.wd.Fired() {
			return s.timeout(ctx)
		}
		return s.fail(ctx, adapter.HandleError(err))
	}
	defer fs.Close()

	for fs.Next() {
		if s.wd.Fired() {
			return s.timeout(ctx)
		}
		s.wd.Reset()
		s.metrics.Fragments++

		raw := fs.Current()
		chunk := adapter.ProcessChunk(raw)
		switch chunk.Kind {
		case provider.KindText:
			s.metrics.Characters += utf8.RuneCountInString(chunk.Text)
			s.engine.Write(chunk.Text)
			if err := s.drain(ctx); err != nil {
				return s.deliveryFailed(err)
			}

		case provider.KindFunctionCall:
			call := chunk.FunctionCall
			if call == nil {
				call = adapter.ExtractFunctionCall(raw)
			}
			if call == nil {
				return s.fail(ctx, s.internalError(errMissingCall))
			}
			if err := s.flush(ctx); err != nil {
				return s.deliveryFailed(err)
			}
			s.logger.Info("function call", "name", call.Name, "id", call.ID)
			return Result{Status: StatusFunctionCall, FunctionCall: call}

		case provider.KindError:
			return s.fail(ctx, chunk.Err)

		case provider.KindDone:
			if err := s.flush(ctx); err != nil {
				return s.deliveryFailed(err)
			}
			return Result{Status: StatusCompleted}

		case provider.KindSkip:
		}
	}

	if s.wd.Fired() {
		return s.timeout(ctx)
	}
	if err := fs.Err(); err != nil {
		return s.fail(ctx, adapter.HandleError(err))
	}
	if err := s.flush(ctx); err != nil {
		return s.deliveryFailed(err)
	}
	return Result{Status: StatusCompleted}
}

// drain delivers every segment the engine has ready.
func (s *session) drain(ctx context.Context) error {
	for {
		seg, ok := s.engine.Next()
		if !ok {
			return nil
		}
		if err := s.deliver(ctx, seg); err != nil {
			return err
		}
	}
}

// flush delivers whatever remains in the buffer as one segment.
func (s *session) flush(ctx context.Context) error {
	seg, ok := s.engine.Flush()
	if !ok {
		return nil
	}
	if seg.Break == segment.BreakIncompleteCode {
		s.logger.Warn("incomplete code block", "size", len(seg.Text))
	}
	return s.deliver(ctx, seg)
}

func (s *session) deliver(ctx context.Context, seg segment.Segment) error {
	s.logger.Debug("flush", "break", seg.Break.String(), "size", len(seg.Text))
	if strings.TrimSpace(seg.Text) == "" {
		// Kept in the transcript, never sent on its own.
		s.text.WriteString(seg.Text)
		return nil
	}

	// Pacing and delivery are our own time, not upstream silence.
	s.wd.Pause()
	defer s.wd.Resume()

	if p := s.o.pacer; p != nil && p.Enabled() {
		if d := p.Delay(seg.Text); d > 0 {
			s.o.out.SignalActivity(ctx)
			if err := p.Wait(ctx, d); err != nil {
				return err
			}
		}
	}

	d, err := s.o.out.Deliver(ctx, seg.Text)
	if err != nil {
		return err
	}
	s.delivered++
	s.metrics.Segments++
	s.metrics.Messages += d.Chunks
	s.text.WriteString(seg.Text)
	return nil
}

func (s *session) fail(ctx context.Context, perr *provider.Error) Result {
	if perr == nil {
		perr = s.internalError(nil)
	}
	s.logger.Error("provider error",
		"type", string(perr.Type),
		"code", perr.Code,
		"retryable", perr.Retryable,
		"error", perr)
	if fn := s.o.notices.Error; fn != nil {
		s.o.notify(ctx, s.logger, fn(perr))
	}
	return Result{Status: StatusError, Err: perr}
}

func (s *session) timeout(ctx context.Context) Result {
	s.logger.Warn("inactivity timeout",
		"timeout", s.o.cfg.InactivityTimeout,
		"buffered", s.engine.Len())
	if err := s.flush(ctx); err != nil {
		s.logger.Warn("flush after timeout failed", "error", err)
	}
	s.o.notify(ctx, s.logger, s.o.notices.Timeout)
	return Result{
		Status: StatusTimeout,
		Err: &provider.Error{
			Type:      provider.ErrorTimeout,
			Provider:  s.o.adapter.Name(),
			Message:   fmt.Sprintf("no fragment within %s", s.o.cfg.InactivityTimeout),
			Retryable: true,
			Cause:     ErrTimeout,
		},
	}
}

func (s *session) deliveryFailed(err error) Result {
	s.logger.Error("delivery failed", "error", err)
	return Result{Status: StatusError, Err: s.internalError(err)}
}

func (s *session) internalError(cause error) *provider.Error {
	return &provider.Error{
		Type:     provider.ErrorUnknown,
		Provider: s.o.adapter.Name(),
		Message:  "internal error while streaming",
		Cause:    cause,
	}
}
