package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/i2y/parley/provider"
	"github.com/i2y/parley/provider/sse"
)

// doneSentinel is the payload OpenAI sends after the last chunk.
const doneSentinel = "[DONE]"

// Fragment is the raw unit produced by the OpenAI stream. At most one of
// its fields is set.
type Fragment struct {
	Text string
	// Call is set once a tool call's arguments are complete.
	Call *provider.FunctionCall
	Err  *provider.Error
	Done bool
}

// fragmentStream turns SSE chunks into Fragments, accumulating tool call
// deltas until the finish reason arrives.
type fragmentStream struct {
	reader    *sse.Reader
	current   *Fragment
	pending   []*Fragment
	toolCalls map[int]*provider.FunctionCall
	err       error
	done      bool
}

func newFragmentStream(r *sse.Reader) *fragmentStream {
	return &fragmentStream{
		reader:    r,
		toolCalls: make(map[int]*provider.FunctionCall),
	}
}

func (s *fragmentStream) Next() bool {
	if len(s.pending) > 0 {
		s.current, s.pending = s.pending[0], s.pending[1:]
		return true
	}
	if s.done || s.err != nil {
		return false
	}

	data, err := s.reader.Next()
	switch {
	case err == nil && string(data) == doneSentinel:
		s.done = true
		s.current = s.finish(&Fragment{Done: true})
		return true
	case errors.Is(err, io.EOF):
		s.done = true
		if call := s.flushCalls(); call != nil {
			s.current = &Fragment{Call: call}
			return true
		}
		return false
	case err != nil:
		s.err = err
		return false
	}

	var chunk streamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		s.err = fmt.Errorf("parsing chunk: %w", err)
		return false
	}
	s.current = s.convert(&chunk)
	return true
}

func (s *fragmentStream) convert(chunk *streamChunk) *Fragment {
	if chunk.Error != nil {
		return &Fragment{Err: &provider.Error{
			Type:     provider.ErrorAPI,
			Provider: Name,
			Message:  chunk.Error.Message,
			Code:     chunk.Error.Code,
		}}
	}
	if len(chunk.Choices) == 0 {
		return &Fragment{}
	}

	choice := chunk.Choices[0]
	for _, tc := range choice.Delta.ToolCalls {
		call, ok := s.toolCalls[tc.Index]
		if !ok {
			call = &provider.FunctionCall{}
			s.toolCalls[tc.Index] = call
		}
		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Function.Name != "" {
			call.Name = tc.Function.Name
		}
		call.Arguments += tc.Function.Arguments
	}

	f := &Fragment{Text: choice.Delta.Content + choice.Delta.Refusal}
	if choice.FinishReason == nil {
		return f
	}
	var terminal *Fragment
	switch *choice.FinishReason {
	case "tool_calls", "function_call":
		if call := s.flushCalls(); call != nil {
			terminal = &Fragment{Call: call}
		}
	case "content_filter":
		terminal = &Fragment{Err: provider.Blocked(Name, "")}
	}
	if terminal == nil {
		return f
	}
	if f.Text == "" {
		return terminal
	}
	// Text in the same chunk goes out before the terminal event.
	s.pending = append(s.pending, terminal)
	return f
}

// finish emits any completed tool call before the done marker.
func (s *fragmentStream) finish(done *Fragment) *Fragment {
	if call := s.flushCalls(); call != nil {
		s.pending = append(s.pending, done)
		return &Fragment{Call: call}
	}
	return done
}

// flushCalls returns the first accumulated tool call and clears the rest.
func (s *fragmentStream) flushCalls() *provider.FunctionCall {
	if len(s.toolCalls) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(s.toolCalls))
	for i := range s.toolCalls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	call := s.toolCalls[indexes[0]]
	clear(s.toolCalls)
	if call.Arguments == "" {
		call.Arguments = "{}"
	}
	return call
}

func (s *fragmentStream) Current() provider.Fragment {
	return s.current
}

func (s *fragmentStream) Err() error {
	return s.err
}

func (s *fragmentStream) Close() error {
	return s.reader.Close()
}
