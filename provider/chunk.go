package provider

// Kind tags a ProcessedChunk.
type Kind int

const (
	// KindText carries a text delta.
	KindText Kind = iota
	// KindFunctionCall carries a complete function call.
	KindFunctionCall
	// KindError carries a normalized provider error.
	KindError
	// KindDone marks the end of the upstream response.
	KindDone
	// KindSkip marks fragments with nothing to deliver (role headers,
	// usage frames, partial tool arguments).
	KindSkip
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindFunctionCall:
		return "function_call"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	case KindSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// ProcessedChunk is the normalized form of a raw fragment.
type ProcessedChunk struct {
	Kind         Kind
	Text         string
	FunctionCall *FunctionCall
	Err          *Error
}

// FunctionCall is a complete tool invocation requested by the model.
// Receiving one suspends text delivery and hands control to the caller.
type FunctionCall struct {
	ID        string
	Name      string
	Arguments string // JSON string
}

// TextChunk returns a text chunk.
func TextChunk(s string) ProcessedChunk {
	return ProcessedChunk{Kind: KindText, Text: s}
}

// CallChunk returns a function call chunk.
func CallChunk(call *FunctionCall) ProcessedChunk {
	return ProcessedChunk{Kind: KindFunctionCall, FunctionCall: call}
}

// ErrorChunk returns an error chunk.
func ErrorChunk(err *Error) ProcessedChunk {
	return ProcessedChunk{Kind: KindError, Err: err}
}

// DoneChunk returns a done chunk.
func DoneChunk() ProcessedChunk {
	return ProcessedChunk{Kind: KindDone}
}

// SkipChunk returns a chunk the orchestrator ignores.
func SkipChunk() ProcessedChunk {
	return ProcessedChunk{Kind: KindSkip}
}
