package stream

import (
	"log/slog"
	"time"

	"github.com/i2y/parley/pacing"
	"github.com/i2y/parley/provider"
	"github.com/i2y/parley/segment"
)

// MaxRetries bounds the retries of a run whose attempts deliver nothing.
const MaxRetries = 2

// Defaults for Config.
const (
	DefaultInactivityTimeout = 60 * time.Second
	DefaultRetryDelay        = 1500 * time.Millisecond
)

// Config holds per-run settings.
type Config struct {
	InactivityTimeout time.Duration
	RetryDelay        time.Duration
	Segment           segment.Config
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		InactivityTimeout: DefaultInactivityTimeout,
		RetryDelay:        DefaultRetryDelay,
		Segment:           segment.DefaultConfig(),
	}
}

// Notices are user-visible messages the orchestrator delivers itself.
// An empty string disables the notice.
type Notices struct {
	NoResponse string
	Timeout    string
	// Error renders a provider error. Nil disables error notices.
	Error func(*provider.Error) string
}

// DefaultNotices returns the default notice texts.
func DefaultNotices() Notices {
	return Notices{
		NoResponse: "Sorry, I couldn't come up with a response. Please try again.",
		Timeout:    "The response took too long and was cut short.",
		Error:      errorNotice,
	}
}

func errorNotice(e *provider.Error) string {
	switch e.Type {
	case provider.ErrorRateLimit:
		return "I'm being rate limited right now. Please try again in a moment."
	case provider.ErrorContentBlocked:
		return "I can't respond to that."
	case provider.ErrorTimeout:
		return "The upstream service timed out. Please try again."
	default:
		return "Something went wrong while generating a response."
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the run settings.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.cfg = cfg
	}
}

// WithInactivityTimeout sets the watchdog timeout.
func WithInactivityTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.cfg.InactivityTimeout = d
	}
}

// WithRetryDelay sets the pause between empty attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.cfg.RetryDelay = d
	}
}

// WithSegmentConfig sets the segmentation thresholds.
func WithSegmentConfig(cfg segment.Config) Option {
	return func(o *Orchestrator) {
		o.cfg.Segment = cfg
	}
}

// WithPacing sets the delivery pacing simulator.
func WithPacing(p *pacing.Simulator) Option {
	return func(o *Orchestrator) {
		o.pacer = p
	}
}

// WithNotices replaces the notice texts.
func WithNotices(n Notices) Option {
	return func(o *Orchestrator) {
		o.notices = n
	}
}

// WithSleep replaces the wait used between retries.
func WithSleep(fn pacing.SleepFunc) Option {
	return func(o *Orchestrator) {
		o.sleep = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}
