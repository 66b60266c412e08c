package anthropic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/i2y/parley/provider"
	"github.com/i2y/parley/provider/sse"
)

// Fragment is the raw unit produced by the Anthropic stream.
type Fragment struct {
	Text string
	// Call is set when a tool_use block closes.
	Call *provider.FunctionCall
	Err  *provider.Error
	Done bool
}

type fragmentStream struct {
	reader  *sse.Reader
	current *Fragment
	err     error
	done    bool

	tool *provider.FunctionCall
}

func (s *fragmentStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	data, err := s.reader.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
			return false
		}
		s.err = err
		return false
	}

	var event streamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.err = fmt.Errorf("parsing event: %w", err)
		return false
	}
	s.current = s.convert(&event)
	return true
}

func (s *fragmentStream) convert(event *streamEvent) *Fragment {
	switch event.Type {
	case "content_block_start":
		if b := event.ContentBlock; b != nil {
			switch b.Type {
			case "tool_use":
				s.tool = &provider.FunctionCall{ID: b.ID, Name: b.Name}
			case "text":
				return &Fragment{Text: b.Text}
			}
		}

	case "content_block_delta":
		if d := event.Delta; d != nil {
			if d.PartialJSON != "" && s.tool != nil {
				s.tool.Arguments += d.PartialJSON
			}
			return &Fragment{Text: d.Text}
		}

	case "content_block_stop":
		if call := s.tool; call != nil {
			s.tool = nil
			if call.Arguments == "" {
				call.Arguments = "{}"
			}
			return &Fragment{Call: call}
		}

	case "message_delta":
		if event.Delta != nil && event.Delta.StopReason == "refusal" {
			return &Fragment{Err: provider.Blocked(Name, "the model declined to respond")}
		}

	case "message_stop":
		s.done = true
		return &Fragment{Done: true}

	case "error":
		if event.Error != nil {
			return &Fragment{Err: streamError(event.Error)}
		}
	}
	return &Fragment{}
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
