// Package stream drives one conversational turn from a provider stream to a
// chat sink.
//
// An Orchestrator opens the adapter's fragment stream, feeds text into a
// segment.Engine, paces each ready segment and hands it to the sink. A
// function call suspends delivery and returns control to the caller, which
// executes the tool and starts a new run. Runs that deliver nothing are
// retried a bounded number of times before a "no response" notice is sent.
package stream

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/i2y/parley/pacing"
	"github.com/i2y/parley/provider"
	"github.com/i2y/parley/sink"
)

// Orchestrator runs streaming sessions against one adapter and one sink.
// Each Run owns its session state, so an Orchestrator may be reused for the
// successive runs of a turn, but runs must not overlap on the same sink.
type Orchestrator struct {
	adapter provider.Adapter
	out     sink.Sink
	cfg     Config
	pacer   *pacing.Simulator
	notices Notices
	sleep   pacing.SleepFunc
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Orchestrator.
func New(adapter provider.Adapter, out sink.Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		adapter: adapter,
		out:     out,
		cfg:     DefaultConfig(),
		notices: DefaultNotices(),
		sleep:   pacing.Sleep,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.pacer != nil && o.pacer.FineGrained() {
		o.cfg.Segment.SentenceFlush = true
	}
	return o
}

// Run streams one response. The returned error is non-nil only for invalid
// calls; provider failures are reported through Result.
func (o *Orchestrator) Run(ctx context.Context, req *provider.Request) (Result, error) {
	if req == nil {
		return Result{}, ErrNilRequest
	}

	id := uuid.NewString()
	logger := o.logger.With("session", id, "provider", o.adapter.Name(), "model", req.Model)

	ctx, span := tracer.Start(ctx, "stream.Run", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("provider", o.adapter.Name()),
		attribute.String("model", req.Model),
	))
	defer span.End()

	var (
		text    strings.Builder
		metrics = Metrics{StartedAt: o.now()}
	)
	logger.Info("session start")

	var res Result
	for attempt := 0; ; attempt++ {
		metrics.Attempts++
		s := newSession(o, logger.With("attempt", attempt+1), &metrics, &text)
		var delivered int
		res, delivered = s.run(ctx, req)

		if res.Status != StatusCompleted || delivered > 0 {
			break
		}
		// Nothing was delivered, so only whitespace can be buffered here.
		text.Reset()
		if attempt >= MaxRetries {
			logger.Warn("no response after retries", "attempts", metrics.Attempts)
			o.notify(ctx, logger, o.notices.NoResponse)
			break
		}
		logger.Info("retry", "attempt", attempt+2, "delay", o.cfg.RetryDelay)
		if err := o.sleep(ctx, o.cfg.RetryDelay); err != nil {
			res = Result{Status: StatusError, Err: o.adapter.HandleError(err)}
			break
		}
	}

	metrics.FinishedAt = o.now()
	res.Text = text.String()
	res.Metrics = metrics

	span.SetAttributes(
		attribute.String("status", res.Status.String()),
		attribute.Int("attempts", metrics.Attempts),
		attribute.Int("segments", metrics.Segments),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}

	attrs := []any{
		"status", res.Status.String(),
		"attempts", metrics.Attempts,
		"fragments", metrics.Fragments,
		"segments", metrics.Segments,
		"messages", metrics.Messages,
		"duration", metrics.Duration(),
	}
	if res.Err != nil {
		logger.Error("session end", append(attrs, "error", res.Err)...)
	} else {
		logger.Info("session end", attrs...)
	}
	return res, nil
}

// notify delivers an orchestrator notice. Failures are logged.
func (o *Orchestrator) notify(ctx context.Context, logger *slog.Logger, text string) {
	if text == "" {
		return
	}
	if _, err := o.out.Deliver(ctx, text); err != nil {
		logger.Warn("notice delivery failed", "error", err)
	}
}
