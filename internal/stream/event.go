// SPDX-License-Identifier: MIT

// Package stream delivers fan-out outcomes to a client as an append-only
// event stream (Server-Sent Events).
package stream

// Event type tags.
const (
	TypeProgress = "progress"
	TypeSuccess  = "success"
	TypeError    = "error"
	TypeComplete = "complete"
)

// Event is one stream frame: a type tag plus a JSON-encodable body that
// repeats the tag in its "type" field.
type Event struct {
	Type string
	Data any
}

// Progress reports how many items reached a terminal state.
type Progress struct {
	Type    string `json:"type"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// Success carries one item's payload.
type Success struct {
	Type   string `json:"type"`
	ItemID string `json:"itemId"`
	Result any    `json:"result"`
}

// Failure reports one item's error. Kind is the stable error class.
type Failure struct {
	Type    string `json:"type"`
	ItemID  string `json:"itemId"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// Complete is always the last event of a stream.
type Complete struct {
	Type       string `json:"type"`
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

func progressEvent(current, total int) Event {
	return Event{Type: TypeProgress, Data: Progress{Type: TypeProgress, Current: current, Total: total}}
}

func successEvent(id string, result any) Event {
	return Event{Type: TypeSuccess, Data: Success{Type: TypeSuccess, ItemID: id, Result: result}}
}

func failureEvent(id, message, kind string) Event {
	return Event{Type: TypeError, Data: Failure{Type: TypeError, ItemID: id, Message: message, Kind: kind}}
}

func completeEvent(s Summary) Event {
	return Event{Type: TypeComplete, Data: Complete{
		Type:       TypeComplete,
		Total:      s.Total,
		Successful: s.Successful,
		Failed:     s.Failed,
	}}
}
