// Package assistant runs conversational turns: it assembles the prompt from
// persona and history, streams the response through the orchestrator,
// executes requested tools and restarts the stream until the model answers.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/i2y/parley/history"
	"github.com/i2y/parley/pacing"
	"github.com/i2y/parley/persona"
	"github.com/i2y/parley/provider"
	"github.com/i2y/parley/sink"
	"github.com/i2y/parley/stream"
	"github.com/i2y/parley/tools"
)

// Turn is one user message to answer.
type Turn struct {
	// Conversation keys the history. Empty disables history for the turn.
	Conversation string
	Text         string
	// MessageID is the platform id of the user's message.
	MessageID string
	// Persona overrides the default persona for this turn.
	Persona string
}

// Reply summarizes a turn.
type Reply struct {
	// Status is the status of the last session.
	Status stream.Status
	// Text is everything delivered during the turn.
	Text  string
	Calls []provider.FunctionCall
	// Sessions counts orchestrator runs, one plus one per tool round.
	Sessions int
	Err      *provider.Error
	Metrics  []stream.Metrics
}

// Assistant answers turns with one adapter. It holds no per-turn state, so
// turns of different conversations may run concurrently.
type Assistant struct {
	adapter        provider.Adapter
	model          string
	personas       *persona.Library
	persona        string
	tools          *tools.Registry
	history        history.Store
	historyLimit   int
	streamCfg      stream.Config
	pacing         pacing.Config
	pacingOpts     []pacing.Option
	notices        stream.Notices
	maxMessageSize int
	replyToInput   bool
	maxToolRounds  int
	temperature    *float64
	maxTokens      *int
	sleep          pacing.SleepFunc
	logger         *slog.Logger
}

// New creates an Assistant.
func New(adapter provider.Adapter, opts ...Option) *Assistant {
	a := &Assistant{
		adapter:        adapter,
		personas:       persona.NewLibrary(),
		tools:          tools.NewRegistry(),
		streamCfg:      stream.DefaultConfig(),
		pacing:         pacing.DefaultConfig(pacing.Sentence),
		notices:        stream.DefaultNotices(),
		maxMessageSize: sink.DefaultMaxMessageSize,
		replyToInput:   true,
		maxToolRounds:  DefaultMaxToolRounds,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Respond answers turn on platform. Provider failures are reported in
// Reply; the error is non-nil only when the turn could not be set up.
func (a *Assistant) Respond(ctx context.Context, platform sink.Platform, turn Turn) (Reply, error) {
	if strings.TrimSpace(turn.Text) == "" {
		return Reply{}, errors.New("assistant: empty turn")
	}

	p, err := a.personas.Get(a.personaName(turn))
	if err != nil {
		return Reply{}, err
	}

	ctx, span := tracer.Start(ctx, "assistant.Respond", trace.WithAttributes(
		attribute.String("conversation", turn.Conversation),
		attribute.String("persona", p.Name),
	))
	defer span.End()

	logger := a.logger.With("conversation", turn.Conversation, "persona", p.Name)

	past, err := a.loadHistory(ctx, turn.Conversation)
	if err != nil {
		return Reply{}, err
	}
	sim, err := a.simulator(p)
	if err != nil {
		return Reply{}, err
	}
	toolset := a.tools.Subset(p.Allows)
	defs, err := toolset.Definitions()
	if err != nil {
		return Reply{}, err
	}
	if len(defs) > 0 && !a.adapter.Capabilities().FunctionCalling {
		logger.Debug("adapter cannot call functions; tools withheld", "tools", len(defs))
		defs = nil
	}

	msgOpts := []sink.Option{
		sink.WithMaxMessageSize(a.maxMessageSize),
		sink.WithPacer(sim),
		sink.WithLogger(logger),
	}
	if a.replyToInput && turn.MessageID != "" {
		msgOpts = append(msgOpts, sink.WithReplyTo(turn.MessageID))
	}
	out := sink.NewMessenger(platform, msgOpts...)

	streamOpts := []stream.Option{
		stream.WithConfig(a.streamCfg),
		stream.WithPacing(sim),
		stream.WithNotices(a.notices),
		stream.WithLogger(logger),
	}
	if a.sleep != nil {
		streamOpts = append(streamOpts, stream.WithSleep(a.sleep))
	}
	orch := stream.New(a.adapter, out, streamOpts...)

	base := make([]provider.Message, 0, len(past)+1)
	base = append(base, provider.SystemMessage(p.SystemMessage()))
	base = append(base, past...)
	added := []provider.Message{provider.UserMessage(turn.Text)}

	var (
		reply Reply
		text  strings.Builder
	)
	for round := 0; ; round++ {
		req := a.request(p, slices.Concat(base, added), defs, round)
		res, err := orch.Run(ctx, req)
		if err != nil {
			return Reply{}, err
		}
		reply.Sessions++
		reply.Status = res.Status
		reply.Err = res.Err
		reply.Metrics = append(reply.Metrics, res.Metrics)
		text.WriteString(res.Text)

		if res.Status != stream.StatusFunctionCall {
			if res.Text != "" {
				added = append(added, provider.AssistantMessage(res.Text))
			}
			break
		}

		call := res.FunctionCall
		reply.Calls = append(reply.Calls, *call)
		if round >= a.maxToolRounds {
			logger.Warn("tool rounds exhausted", "rounds", round, "tool", call.Name)
			break
		}
		added = append(added,
			provider.AssistantCallMessage(res.Text, call),
			provider.ToolMessage(call, a.execute(ctx, logger, toolset, call)),
		)
	}
	reply.Text = text.String()

	span.SetAttributes(
		attribute.String("status", reply.Status.String()),
		attribute.Int("sessions", reply.Sessions),
		attribute.Int("tool_calls", len(reply.Calls)),
	)
	if reply.Err != nil {
		span.SetStatus(codes.Error, reply.Err.Error())
	}

	if answered(added) {
		if err := a.saveHistory(ctx, turn.Conversation, added); err != nil {
			logger.Error("saving history failed", "error", err)
		}
	}
	logger.Info("turn end",
		"status", reply.Status.String(),
		"sessions", reply.Sessions,
		"tool_calls", len(reply.Calls),
	)
	return reply, nil
}

func (a *Assistant) personaName(turn Turn) string {
	if turn.Persona != "" {
		return turn.Persona
	}
	return a.persona
}

func (a *Assistant) simulator(p *persona.Persona) (*pacing.Simulator, error) {
	cfg := a.pacing
	if p.Pacing != "" {
		level, err := pacing.ParseLevel(p.Pacing)
		if err != nil {
			return nil, fmt.Errorf("persona %q: %w", p.Name, err)
		}
		cfg.Level = level
	}
	opts := a.pacingOpts
	if a.sleep != nil {
		opts = append([]pacing.Option{pacing.WithSleep(a.sleep)}, opts...)
	}
	return pacing.New(cfg, opts...), nil
}

// request builds the provider request for one round. After the last
// allowed tool round the tools are withheld so the model has to answer.
func (a *Assistant) request(p *persona.Persona, msgs []provider.Message, defs []provider.ToolDef, round int) *provider.Request {
	req := &provider.Request{
		Model:       a.model,
		Messages:    msgs,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}
	if p.Model != "" {
		req.Model = p.Model
	}
	if p.Temperature != nil {
		req.Temperature = p.Temperature
	}
	if round < a.maxToolRounds {
		req.Tools = defs
	}
	return req
}

// execute runs a tool call and returns the content reported to the model.
func (a *Assistant) execute(ctx context.Context, logger *slog.Logger, toolset *tools.Registry, call *provider.FunctionCall) string {
	ctx, span := tracer.Start(ctx, "assistant.tool", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	result, err := toolset.Execute(ctx, call)
	if err != nil {
		logger.Warn("tool call failed", "tool", call.Name, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return "Error: " + err.Error()
	}
	logger.Debug("tool call", "tool", call.Name, "result_len", len(result))
	return result
}

func (a *Assistant) loadHistory(ctx context.Context, conversation string) ([]provider.Message, error) {
	if a.history == nil || conversation == "" {
		return nil, nil
	}
	msgs, err := a.history.Load(ctx, conversation, a.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return msgs, nil
}

func (a *Assistant) saveHistory(ctx context.Context, conversation string, msgs []provider.Message) error {
	if a.history == nil || conversation == "" {
		return nil
	}
	return a.history.Append(ctx, conversation, msgs...)
}

// answered reports whether the turn ends with an assistant message. Turns
// that produced nothing are not persisted, so history keeps alternating.
func answered(msgs []provider.Message) bool {
	if len(msgs) == 0 {
		return false
	}
	last := msgs[len(msgs)-1]
	return last.Role == provider.RoleAssistant && len(last.ToolCalls) == 0
}
