package gateway

// Frame types exchanged over the socket.
const (
	// FrameMessage carries chat text in either direction.
	FrameMessage = "message"
	// FrameTyping tells the client the assistant is composing.
	FrameTyping = "typing"
	// FrameDone ends the answer to one client message.
	FrameDone = "done"
	// FrameError reports a rejected client frame or failed turn.
	FrameError = "error"
)

// Frame is the JSON envelope of every websocket message.
type Frame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	// ReplyTo names the client message an outgoing message answers.
	ReplyTo      string `json:"reply_to,omitempty"`
	Text         string `json:"text,omitempty"`
	Conversation string `json:"conversation,omitempty"`
	Persona      string `json:"persona,omitempty"`
	Status       string `json:"status,omitempty"`
	Error        string `json:"error,omitempty"`
}
