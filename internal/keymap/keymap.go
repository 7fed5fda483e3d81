// Package keymap normalizes platform key identifiers into the browser-style
// key/code pairs used on the wire.
package keymap

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/milliescient/vkey/internal/event"
)

// Modifier state bits as reported by the capture surface.
const (
	ShiftMask uint32 = 0x1
	CtrlMask  uint32 = 0x4
	MetaMask  uint32 = 0x8
	AltMask   uint32 = 0x10
)

// namedKeyCodes maps X11-style keysym names to physical key codes.
var namedKeyCodes = map[string]string{
	"Up":        "ArrowUp",
	"Down":      "ArrowDown",
	"Left":      "ArrowLeft",
	"Right":     "ArrowRight",
	"Home":      "Home",
	"End":       "End",
	"Prior":     "PageUp",
	"Next":      "PageDown",
	"BackSpace": "Backspace",
	"Delete":    "Delete",
	"Return":    "Enter",
	"Tab":       "Tab",
	"Escape":    "Escape",
	"space":     "Space",

	"F1":  "F1",
	"F2":  "F2",
	"F3":  "F3",
	"F4":  "F4",
	"F5":  "F5",
	"F6":  "F6",
	"F7":  "F7",
	"F8":  "F8",
	"F9":  "F9",
	"F10": "F10",
	"F11": "F11",
	"F12": "F12",

	"bracketleft":  "BracketLeft",
	"bracketright": "BracketRight",
	"backslash":    "Backslash",
	"semicolon":    "Semicolon",
	"apostrophe":   "Quote",
	"comma":        "Comma",
	"period":       "Period",
	"slash":        "Slash",
	"grave":        "Backquote",
	"minus":        "Minus",
	"equal":        "Equal",
}

// modifierSyms are bare modifier presses. They never produce an event; their
// state rides along on other keys instead.
var modifierSyms = map[string]struct{}{
	"Shift_L":   {},
	"Shift_R":   {},
	"Control_L": {},
	"Control_R": {},
	"Alt_L":     {},
	"Alt_R":     {},
	"Meta_L":    {},
	"Meta_R":    {},
	"Super_L":   {},
	"Super_R":   {},
}

// Normalize converts a raw key press into its canonical event. The second
// return is false when the press maps to nothing on the wire (bare modifiers
// and keys with no derivable code).
func Normalize(sym, char string, state uint32) (event.Key, bool) {
	if _, ok := modifierSyms[sym]; ok {
		return event.Key{}, false
	}
	code, ok := codeFor(sym, char)
	if !ok {
		return event.Key{}, false
	}
	return event.Key{
		Key:   keyFor(sym, char),
		Code:  code,
		Shift: state&ShiftMask != 0,
		Ctrl:  state&CtrlMask != 0,
		Alt:   state&AltMask != 0,
		Meta:  state&MetaMask != 0,
	}, true
}

func codeFor(sym, char string) (string, bool) {
	if code, ok := namedKeyCodes[sym]; ok {
		return code, true
	}
	if r, ok := singleRune(sym); ok {
		if unicode.IsLetter(r) {
			return "Key" + string(unicode.ToUpper(r)), true
		}
		if unicode.IsDigit(r) {
			return "Digit" + string(r), true
		}
	}
	if char != "" && isPrintable(char) {
		if isAlpha(char) {
			return "Key" + strings.ToUpper(char), true
		}
		// Printable but not a letter and not in the table: no physical
		// code to report, so the press is dropped.
		return "", false
	}
	return "", false
}

// keyFor picks the logical key label: the typed character when there is a
// printable one, otherwise the keysym name verbatim.
func keyFor(sym, char string) string {
	if char != "" && isPrintable(char) {
		return char
	}
	return sym
}

func singleRune(s string) (rune, bool) {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, false
	}
	return r, true
}

func isPrintable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
