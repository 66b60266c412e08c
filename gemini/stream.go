package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/i2y/parley/provider"
	"github.com/i2y/parley/provider/sse"
)

// Fragment is the raw unit produced by the Gemini stream. One SSE payload
// may expand into several fragments.
type Fragment struct {
	Text string
	Call *provider.FunctionCall
	Err  *provider.Error
	Done bool
}

// blockedReasons are finish reasons that mean the output was filtered.
var blockedReasons = map[string]bool{
	"SAFETY":             true,
	"RECITATION":         true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
}

type fragmentStream struct {
	reader  *sse.Reader
	current *Fragment
	pending []*Fragment
	calls   int
	err     error
	done    bool
}

func (s *fragmentStream) Next() bool {
	for len(s.pending) == 0 {
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
		var chunk streamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			s.err = fmt.Errorf("parsing chunk: %w", err)
			return false
		}
		s.pending = s.expand(&chunk)
	}
	s.current, s.pending = s.pending[0], s.pending[1:]
	return true
}

func (s *fragmentStream) expand(chunk *streamChunk) []*Fragment {
	if e := chunk.Error; e != nil {
		return []*Fragment{{Err: provider.FromStatus(Name, e.Code, e.Message, e.Status, nil)}}
	}
	if fb := chunk.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return []*Fragment{{Err: provider.Blocked(Name, "prompt blocked: "+fb.BlockReason)}}
	}
	if len(chunk.Candidates) == 0 {
		return []*Fragment{{}}
	}

	cand := chunk.Candidates[0]
	var out []*Fragment
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				s.calls++
				args, _ := json.Marshal(p.FunctionCall.Args)
				if p.FunctionCall.Args == nil {
					args = []byte("{}")
				}
				out = append(out, &Fragment{Call: &provider.FunctionCall{
					ID:        fmt.Sprintf("%s-%d", p.FunctionCall.Name, s.calls),
					Name:      p.FunctionCall.Name,
					Arguments: string(args),
				}})
			case p.Text != "":
				out = append(out, &Fragment{Text: p.Text})
			}
		}
	}

	switch {
	case blockedReasons[cand.FinishReason]:
		out = append(out, &Fragment{Err: provider.Blocked(Name, "response blocked: "+cand.FinishReason)})
	case cand.FinishReason == "STOP" || cand.FinishReason == "MAX_TOKENS":
		out = append(out, &Fragment{Done: true})
	}
	if len(out) == 0 {
		out = append(out, &Fragment{})
	}
	return out
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
