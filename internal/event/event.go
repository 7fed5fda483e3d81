// Package event defines the canonical, platform-independent input events
// exchanged between a capture endpoint and a remote injector.
package event

// Button identifies a normalized pointer button. The values are the wire
// encoding; middle and right physical buttons both normalize to
// ButtonSecondary.
type Button int

const (
	ButtonPrimary   Button = 0
	ButtonSecondary Button = 2
)

// ButtonFromRaw maps a raw physical button index (0 left, 1 middle,
// 2 right) to its canonical button.
func ButtonFromRaw(raw int) Button {
	if raw == 0 {
		return ButtonPrimary
	}
	return ButtonSecondary
}

// Event is a single canonical input event. The variants below are the only
// implementations. Events are ephemeral: constructed once per accepted raw
// input, serialized, and discarded.
type Event interface {
	isEvent()
}

// Key is a canonical key press.
type Key struct {
	// Key is the textual character produced when printable, otherwise the
	// raw symbolic key name verbatim.
	Key string

	// Code is the layout-independent physical key identifier
	// (KeyA..KeyZ, Digit0..Digit9, named keys). Never empty; raw input
	// with no derivable code is dropped before a Key is constructed.
	Code string

	// Modifier booleans, one per modifier class, taken from the raw
	// modifier bitmask at capture time. Never inferred from Key.
	Shift bool
	Ctrl  bool
	Alt   bool
	Meta  bool
}

// Move is an absolute pointer position normalized to the unit square of the
// sending screen. Both coordinates are clamped to [0,1].
type Move struct {
	X float64
	Y float64
}

// Click is a normalized pointer button press.
type Click struct {
	Button Button
}

// Scroll is a signed number of logical wheel notches.
type Scroll struct {
	Steps int
}

func (Key) isEvent()    {}
func (Move) isEvent()   {}
func (Click) isEvent()  {}
func (Scroll) isEvent() {}
