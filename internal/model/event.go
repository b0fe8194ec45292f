package model

import "encoding/json"

// Event type constants. These are the only event shapes that cross the job
// channel boundary; raw engine events never do.
const (
	EventProgress = "progress"
	EventDone     = "done"
	EventError    = "error"
)

// Event is a single normalized job event as delivered over SSE.
type Event struct {
	Type    string
	Pct     int
	Stage   string
	Message string
	Detail  string
}

// ProgressEvent builds a progress event. pct is expected to already be clamped.
func ProgressEvent(pct int, stage, message string) Event {
	return Event{Type: EventProgress, Pct: pct, Stage: stage, Message: message}
}

// DoneEvent builds the terminal success event.
func DoneEvent() Event {
	return Event{Type: EventDone, Pct: 100}
}

// ErrorEvent builds the terminal failure event.
func ErrorEvent(message, detail string) Event {
	return Event{Type: EventError, Message: message, Detail: detail}
}

// Terminal reports whether no further events may follow e.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

type progressWire struct {
	Type    string `json:"type"`
	Pct     int    `json:"pct"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

type doneWire struct {
	Type string `json:"type"`
	Pct  int    `json:"pct"`
}

type errorWire struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// MarshalJSON encodes e using the wire shape for its type, so each variant
// carries exactly its own fields.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventProgress:
		return json.Marshal(progressWire{Type: e.Type, Pct: e.Pct, Stage: e.Stage, Message: e.Message})
	case EventDone:
		return json.Marshal(doneWire{Type: e.Type, Pct: 100})
	case EventError:
		return json.Marshal(errorWire{Type: e.Type, Message: e.Message, Detail: e.Detail})
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{Type: e.Type})
	}
}

// UnmarshalJSON decodes any of the wire shapes back into an Event.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w struct {
		Type    string `json:"type"`
		Pct     int    `json:"pct"`
		Stage   string `json:"stage"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event{Type: w.Type, Pct: w.Pct, Stage: w.Stage, Message: w.Message, Detail: w.Detail}
	return nil
}
