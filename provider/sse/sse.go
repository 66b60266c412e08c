// Package sse opens JSON-over-HTTP streaming requests and yields the data
// payloads of the text/event-stream response.
package sse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrorDecoder builds an error from a non-200 response.
type ErrorDecoder func(status int, body []byte) error

// Request describes one streaming call.
type Request struct {
	URL     string
	Header  http.Header
	Payload any
	// Decode turns a failed response into an error. When nil a generic
	// error carrying the status and body is returned.
	Decode ErrorDecoder
}

// Post sends req and returns a Reader over the response body.
func Post(ctx context.Context, hc *http.Client, req Request) (*Reader, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		raw, _ := io.ReadAll(resp.Body)
		if req.Decode != nil {
			return nil, req.Decode(resp.StatusCode, raw)
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return NewReader(resp.Body), nil
}

// Reader yields non-empty data payloads. Event names, ids and comments are
// dropped; every upstream this module talks to repeats the event type in
// the payload.
type Reader struct {
	br   *bufio.Reader
	body io.ReadCloser
}

func NewReader(body io.ReadCloser) *Reader {
	return &Reader{br: bufio.NewReader(body), body: body}
}

// Next returns the next data payload, or io.EOF once the body is drained.
// A final line without a trailing newline is still delivered.
func (r *Reader) Next() ([]byte, error) {
	for {
		line, err := r.br.ReadString('\n')
		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data:"); ok {
			if data = strings.TrimSpace(data); data != "" {
				return []byte(data), nil
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

func (r *Reader) Close() error {
	return r.body.Close()
}
