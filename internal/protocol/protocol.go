// Package protocol implements the wire format for canonical input events:
// one JSON object per websocket text message, discriminated by a type field.
package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/milliescient/vkey/internal/event"
)

// Type discriminates wire messages.
type Type string

const (
	// TypeKeyDown carries a key press.
	TypeKeyDown Type = "keydown"

	// TypeMouseMoveAbs carries an absolute pointer position in unit
	// coordinates.
	TypeMouseMoveAbs Type = "mousemove_abs"

	// TypeClick carries a normalized button press.
	TypeClick Type = "click"

	// TypeScroll carries a signed number of wheel notches.
	TypeScroll Type = "scroll"
)

// ErrUnknownType is returned by Decode when the type field names no known
// message.
var ErrUnknownType = errors.New("unknown message type")

// The modifier booleans are always present on the wire, so no omitempty on
// any field here.
type keyDownMessage struct {
	Type  Type   `json:"type"`
	Key   string `json:"key"`
	Code  string `json:"code"`
	Shift bool   `json:"shift"`
	Ctrl  bool   `json:"ctrl"`
	Alt   bool   `json:"alt"`
	Meta  bool   `json:"meta"`
}

type mouseMoveMessage struct {
	Type Type    `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type clickMessage struct {
	Type   Type         `json:"type"`
	Button event.Button `json:"button"`
}

type scrollMessage struct {
	Type Type `json:"type"`
	Dy   int  `json:"dy"`
}

// Encode serializes a canonical event into its wire message.
func Encode(ev event.Event) ([]byte, error) {
	switch e := ev.(type) {
	case event.Key:
		return json.Marshal(keyDownMessage{
			Type:  TypeKeyDown,
			Key:   e.Key,
			Code:  e.Code,
			Shift: e.Shift,
			Ctrl:  e.Ctrl,
			Alt:   e.Alt,
			Meta:  e.Meta,
		})
	case event.Move:
		return json.Marshal(mouseMoveMessage{Type: TypeMouseMoveAbs, X: e.X, Y: e.Y})
	case event.Click:
		return json.Marshal(clickMessage{Type: TypeClick, Button: e.Button})
	case event.Scroll:
		return json.Marshal(scrollMessage{Type: TypeScroll, Dy: e.Steps})
	default:
		return nil, errors.Errorf("unencodable event type %T", ev)
	}
}

// Decode parses a wire message back into its canonical event.
func Decode(data []byte) (event.Event, error) {
	var probe struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, "malformed message")
	}

	switch probe.Type {
	case TypeKeyDown:
		var msg keyDownMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, errors.Wrap(err, "malformed keydown")
		}
		return event.Key{
			Key:   msg.Key,
			Code:  msg.Code,
			Shift: msg.Shift,
			Ctrl:  msg.Ctrl,
			Alt:   msg.Alt,
			Meta:  msg.Meta,
		}, nil

	case TypeMouseMoveAbs:
		var msg mouseMoveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, errors.Wrap(err, "malformed mousemove_abs")
		}
		return event.Move{X: msg.X, Y: msg.Y}, nil

	case TypeClick:
		var msg clickMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, errors.Wrap(err, "malformed click")
		}
		return event.Click{Button: msg.Button}, nil

	case TypeScroll:
		var msg scrollMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, errors.Wrap(err, "malformed scroll")
		}
		return event.Scroll{Steps: msg.Dy}, nil

	default:
		return nil, errors.Wrapf(ErrUnknownType, "%q", probe.Type)
	}
}
