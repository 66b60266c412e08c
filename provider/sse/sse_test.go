package sse

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloads(t *testing.T, r *Reader) []string {
	t.Helper()
	var out []string
	for {
		data, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, string(data))
	}
}

func TestReader(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "data lines",
			body: "data: {\"a\":1}\n\ndata: {\"a\":2}\n\n",
			want: []string{`{"a":1}`, `{"a":2}`},
		},
		{
			name: "event names and comments skipped",
			body: ": ping\nevent: message_start\ndata: {\"type\":\"message_start\"}\n\n",
			want: []string{`{"type":"message_start"}`},
		},
		{
			name: "crlf and no space after colon",
			body: "data:[DONE]\r\n\r\n",
			want: []string{"[DONE]"},
		},
		{
			name: "empty data skipped",
			body: "data:\n\ndata: x\n",
			want: []string{"x"},
		},
		{
			name: "unterminated last line",
			body: "data: one\n\ndata: two",
			want: []string{"one", "two"},
		},
		{
			name: "empty body",
			body: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(io.NopCloser(strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, payloads(t, r))
			assert.NoError(t, r.Close())
		})
	}
}

func TestPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "secret", r.Header.Get("X-Key"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"prompt":"hi"}`, string(body))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: first\n\ndata: second\n\n")
	}))
	defer srv.Close()

	r, err := Post(context.Background(), srv.Client(), Request{
		URL:     srv.URL,
		Header:  http.Header{"X-Key": {"secret"}},
		Payload: map[string]string{"prompt": "hi"},
	})
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	assert.Equal(t, []string{"first", "second"}, payloads(t, r))
}

func TestPost_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "slow down\n")
	}))
	defer srv.Close()

	t.Run("generic", func(t *testing.T) {
		_, err := Post(context.Background(), nil, Request{URL: srv.URL, Payload: struct{}{}})
		require.Error(t, err)
		assert.Equal(t, "unexpected status 429: slow down", err.Error())
	})

	t.Run("decoder", func(t *testing.T) {
		var gotStatus int
		var gotBody string
		sentinel := errors.New("decoded")
		_, err := Post(context.Background(), srv.Client(), Request{
			URL:     srv.URL,
			Payload: struct{}{},
			Decode: func(status int, body []byte) error {
				gotStatus, gotBody = status, string(body)
				return sentinel
			},
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, http.StatusTooManyRequests, gotStatus)
		assert.Equal(t, "slow down\n", gotBody)
	})
}

func TestPost_Unmarshalable(t *testing.T) {
	_, err := Post(context.Background(), nil, Request{URL: "http://127.0.0.1:0", Payload: make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshaling request")
}
