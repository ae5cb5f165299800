package models

// WebSocket event types sent to the chat widget.
type ChatEventType string

const (
	EventSession    ChatEventType = "session"
	EventTranscript ChatEventType = "transcript"
	EventState      ChatEventType = "state"
	EventFragment   ChatEventType = "fragment"
	EventMessage    ChatEventType = "message"
	EventClosed     ChatEventType = "closed"
	EventHandOff    ChatEventType = "handoff"
	EventRejected   ChatEventType = "rejected"
)

// ChatEvent is a single server-to-widget frame.
type ChatEvent struct {
	Type         ChatEventType `json:"type"`
	SessionID    string        `json:"session_id,omitempty"`
	State        string        `json:"state,omitempty"`
	Messages     []ChatMessage `json:"messages,omitempty"`
	Message      *ChatMessage  `json:"message,omitempty"`
	Fragment     string        `json:"fragment,omitempty"`
	OfferHandOff bool          `json:"offer_handoff,omitempty"`
	HandOff      *HandOff      `json:"handoff,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// Widget-to-server frame types.
const (
	FrameOpen    = "open"
	FrameSend    = "send"
	FrameClose   = "close"
	FrameHandOff = "handoff"
)

// ClientFrame is a single widget-to-server frame.
type ClientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}
