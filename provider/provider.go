// Package provider defines the contract between the stream orchestrator and
// upstream generation services.
//
// An Adapter opens a lazy, finite sequence of provider-native fragments and
// normalizes each one into a ProcessedChunk. The orchestrator never inspects
// raw fragments itself, so any service that can be expressed as a fragment
// stream plugs in without changes to delivery logic.
package provider

import "context"

// Fragment is a provider-native unit of streamed output. Only the adapter
// that produced a fragment knows its concrete type.
type Fragment any

// Adapter is implemented by every upstream generation service.
type Adapter interface {
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string

	// StartStream begins a fresh upstream interaction. Streams are not
	// restartable; every call starts over.
	StartStream(ctx context.Context, req *Request) (FragmentStream, error)

	// ProcessChunk normalizes a raw fragment.
	ProcessChunk(raw Fragment) ProcessedChunk

	// ExtractFunctionCall returns the complete function call carried by raw,
	// or nil if the fragment does not carry one.
	ExtractFunctionCall(raw Fragment) *FunctionCall

	// HandleError maps a native error into the shared taxonomy.
	HandleError(err error) *Error

	// Capabilities reports static feature flags.
	Capabilities() Capabilities
}

// FragmentStream is a pull-based sequence of raw fragments.
type FragmentStream interface {
	// Next advances to the next fragment, returns false when done.
	Next() bool

	// Current returns the current fragment.
	Current() Fragment

	// Err returns any error that occurred during streaming.
	Err() error

	// Close releases stream resources.
	Close() error
}

// Capabilities describes what an adapter supports.
type Capabilities struct {
	Streaming       bool
	FunctionCalling bool
	SystemPrompt    bool
}
