package api

// StreamEventType identifies the type of a server-sent event.
type StreamEventType string

// EventPatchSignals merges the carried signals into the client's signal
// store. It is the only event type a greeting stream emits.
const EventPatchSignals StreamEventType = "datastar-patch-signals"

// MessageSignals is the signal payload of a greeting emission.
type MessageSignals struct {
	Message string `json:"message"`
}

// StreamEvent represents a single server-sent event on a greeting stream.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Signals MessageSignals  `json:"signals"`
}

// NewMessagePatch returns a patch event setting the message signal.
func NewMessagePatch(message string) StreamEvent {
	return StreamEvent{
		Type:    EventPatchSignals,
		Signals: MessageSignals{Message: message},
	}
}
