package greeting

import (
	"strings"

	"github.com/rhuss/greetings/pkg/api"
)

// streamState is the position of a stream in its emission sequence.
type streamState int

const (
	stateNotStarted streamState = iota
	stateResetting              // reset snapshot sent
	stateEmitting               // prefix snapshots in progress
	stateDone                   // every snapshot sent
)

func (s streamState) String() string {
	switch s {
	case stateNotStarted:
		return "not_started"
	case stateResetting:
		return "resetting"
	case stateEmitting:
		return "emitting"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// stream walks NotStarted -> Resetting -> Emitting(0..n) -> Done for one
// fragment list. It is not safe for concurrent use.
type stream struct {
	fragments []string
	state     streamState
	index     int // next prefix length while emitting
	emitted   int
}

func newStream(fragments []string) *stream {
	return &stream{fragments: fragments}
}

// total is the number of emissions in a complete stream: the reset
// snapshot plus one per prefix length 0..len(fragments).
func (s *stream) total() int {
	return len(s.fragments) + 2
}

// complete reports whether every emission has been produced.
func (s *stream) complete() bool {
	return s.emitted == s.total()
}

// next advances the state machine and returns the event to emit and
// whether a pause follows it. ok is false once the stream is done.
func (s *stream) next() (event api.StreamEvent, pause bool, ok bool) {
	switch s.state {
	case stateNotStarted:
		s.state = stateResetting
		return s.emit(""), false, true
	case stateResetting:
		s.state = stateEmitting
		s.index = 0
	case stateEmitting:
	default:
		return api.StreamEvent{}, false, false
	}

	if s.index > len(s.fragments) {
		s.state = stateDone
		return api.StreamEvent{}, false, false
	}
	msg := strings.Join(s.fragments[:s.index], "")
	s.index++
	return s.emit(msg), true, true
}

func (s *stream) emit(msg string) api.StreamEvent {
	s.emitted++
	return api.NewMessagePatch(msg)
}
