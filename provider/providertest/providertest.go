// Package providertest provides a scripted provider.Adapter for tests.
package providertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i2y/parley/provider"
)

var _ provider.Adapter = (*Adapter)(nil)

// Step is one scripted fragment.
type Step struct {
	Chunk provider.ProcessedChunk
	// Delay is waited before the fragment is produced.
	Delay time.Duration
	// Err, when set, terminates the stream with this error instead of
	// producing a fragment.
	Err error
	// Panic, when set, makes ProcessChunk panic with this value.
	Panic any
}

// Text returns a text step.
func Text(s string) Step { return Step{Chunk: provider.TextChunk(s)} }

// Call returns a function call step.
func Call(name, args string) Step {
	return Step{Chunk: provider.CallChunk(&provider.FunctionCall{ID: "call_" + name, Name: name, Arguments: args})}
}

// Done returns a done step.
func Done() Step { return Step{Chunk: provider.DoneChunk()} }

// Fail returns an in-band provider error step.
func Fail(e *provider.Error) Step { return Step{Chunk: provider.ErrorChunk(e)} }

// Texts returns one text step per fragment.
func Texts(fragments ...string) []Step {
	steps := make([]Step, 0, len(fragments))
	for _, f := range fragments {
		steps = append(steps, Text(f))
	}
	return steps
}

// Adapter replays scripts. Each StartStream call consumes the next script;
// the last script is reused once the list is exhausted.
type Adapter struct {
	mu       sync.Mutex
	scripts  [][]Step
	starts   int
	requests []*provider.Request
	StartErr error
	// Caps replaces the reported capabilities when non-nil.
	Caps *provider.Capabilities
}

// New creates an adapter replaying the given scripts.
func New(scripts ...[]Step) *Adapter {
	return &Adapter{scripts: scripts}
}

// Starts returns how many times StartStream was called.
func (a *Adapter) Starts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts
}

// Requests returns the requests passed to StartStream.
func (a *Adapter) Requests() []*provider.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*provider.Request(nil), a.requests...)
}

func (a *Adapter) Name() string { return "scripted" }

func (a *Adapter) StartStream(ctx context.Context, req *provider.Request) (provider.FragmentStream, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.starts++
	a.requests = append(a.requests, req)
	if a.StartErr != nil {
		return nil, a.StartErr
	}
	var steps []Step
	if len(a.scripts) > 0 {
		i := min(a.starts-1, len(a.scripts)-1)
		steps = a.scripts[i]
	}
	return &stream{ctx: ctx, steps: steps, pos: -1}, nil
}

func (a *Adapter) ProcessChunk(raw provider.Fragment) provider.ProcessedChunk {
	step := raw.(*Step)
	if step.Panic != nil {
		panic(step.Panic)
	}
	return step.Chunk
}

func (a *Adapter) ExtractFunctionCall(raw provider.Fragment) *provider.FunctionCall {
	return raw.(*Step).Chunk.FunctionCall
}

func (a *Adapter) HandleError(err error) *provider.Error {
	var pe *provider.Error
	if errors.As(err, &pe) {
		return pe
	}
	return provider.Classify(a.Name(), err)
}

func (a *Adapter) Capabilities() provider.Capabilities {
	if a.Caps != nil {
		return *a.Caps
	}
	return provider.Capabilities{Streaming: true, FunctionCalling: true, SystemPrompt: true}
}

type stream struct {
	ctx    context.Context
	steps  []Step
	pos    int
	err    error
	closed bool
}

func (s *stream) Next() bool {
	if s.err != nil || s.closed {
		return false
	}
	s.pos++
	if s.pos >= len(s.steps) {
		return false
	}
	step := s.steps[s.pos]
	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			s.err = s.ctx.Err()
			return false
		case <-timer.C:
		}
	}
	if step.Err != nil {
		s.err = step.Err
		return false
	}
	return true
}

func (s *stream) Current() provider.Fragment {
	return &s.steps[s.pos]
}

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error {
	s.closed = true
	return nil
}
