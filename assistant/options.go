package assistant

import (
	"log/slog"

	"github.com/i2y/parley/history"
	"github.com/i2y/parley/pacing"
	"github.com/i2y/parley/persona"
	"github.com/i2y/parley/stream"
	"github.com/i2y/parley/tools"
)

// DefaultMaxToolRounds bounds the tool calls of one turn.
const DefaultMaxToolRounds = 4

// Option configures an Assistant.
type Option func(*Assistant)

// WithModel sets the model used when the persona names none.
func WithModel(model string) Option {
	return func(a *Assistant) {
		a.model = model
	}
}

// WithPersonas sets the persona library and the default persona name.
func WithPersonas(lib *persona.Library, defaultName string) Option {
	return func(a *Assistant) {
		if lib != nil {
			a.personas = lib
		}
		a.persona = defaultName
	}
}

// WithTools sets the tools offered to the model.
func WithTools(r *tools.Registry) Option {
	return func(a *Assistant) {
		a.tools = r
	}
}

// WithHistory sets the conversation store. limit caps the past messages
// sent with each turn; zero sends everything.
func WithHistory(s history.Store, limit int) Option {
	return func(a *Assistant) {
		a.history = s
		a.historyLimit = limit
	}
}

// WithStreamConfig sets the orchestrator settings.
func WithStreamConfig(cfg stream.Config) Option {
	return func(a *Assistant) {
		a.streamCfg = cfg
	}
}

// WithPacing sets the pacing settings and simulator options. The options
// are applied to a new simulator on every turn, so a fixed random source
// belongs in pacing.WithSeed rather than pacing.WithRand.
func WithPacing(cfg pacing.Config, opts ...pacing.Option) Option {
	return func(a *Assistant) {
		a.pacing = cfg
		a.pacingOpts = opts
	}
}

// WithNotices sets the notices the orchestrator delivers.
func WithNotices(n stream.Notices) Option {
	return func(a *Assistant) {
		a.notices = n
	}
}

// WithMaxMessageSize sets the platform message limit in runes.
func WithMaxMessageSize(n int) Option {
	return func(a *Assistant) {
		a.maxMessageSize = n
	}
}

// WithReplyToInput makes the first message of a turn a reply to the
// user's message.
func WithReplyToInput(enabled bool) Option {
	return func(a *Assistant) {
		a.replyToInput = enabled
	}
}

// WithMaxToolRounds bounds tool calls per turn. Once exhausted, the model
// is asked again without tools.
func WithMaxToolRounds(n int) Option {
	return func(a *Assistant) {
		if n >= 0 {
			a.maxToolRounds = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Assistant) {
		a.temperature = &t
	}
}

// WithMaxTokens caps the tokens of each response.
func WithMaxTokens(n int) Option {
	return func(a *Assistant) {
		a.maxTokens = &n
	}
}

// WithSleep replaces the sleep used for pacing and retry delays.
func WithSleep(fn pacing.SleepFunc) Option {
	return func(a *Assistant) {
		a.sleep = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}
