package term

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/milliescient/vkey/internal/keymap"
)

// Kind discriminates decoded terminal events.
type Kind int

const (
	// KindKey is a key press.
	KindKey Kind = iota

	// KindFocus is a focus-in or focus-out report.
	KindFocus

	// KindMotion is a pointer motion report.
	KindMotion

	// KindButton is a pointer button press.
	KindButton

	// KindWheel is a wheel movement.
	KindWheel
)

// Event is one decoded terminal input item.
type Event struct {
	Kind Kind

	// Sym is the X11-style keysym name for KindKey.
	Sym string

	// Char is the typed character for KindKey, when printable.
	Char string

	// Mods carries keymap modifier mask bits.
	Mods uint32

	// Focused is the reported state for KindFocus.
	Focused bool

	// X, Y are zero-based cell coordinates for pointer kinds.
	X, Y int

	// Button is the raw button for KindButton: 0 left, 1 middle, 2 right.
	Button int

	// Delta is the raw wheel delta for KindWheel, in platform notches.
	Delta int
}

// Sequences longer than this are junk; drop them rather than buffering
// forever.
const maxSequence = 32

// punctNames maps the punctuation that has a physical key of its own to the
// keysym name for it.
var punctNames = map[rune]string{
	'[':  "bracketleft",
	']':  "bracketright",
	'\\': "backslash",
	';':  "semicolon",
	'\'': "apostrophe",
	',':  "comma",
	'.':  "period",
	'/':  "slash",
	'`':  "grave",
	'-':  "minus",
	'=':  "equal",
}

var csiKeySyms = map[byte]string{
	'A': "Up",
	'B': "Down",
	'C': "Right",
	'D': "Left",
	'H': "Home",
	'F': "End",
}

var tildeSyms = map[int]string{
	1:  "Home",
	3:  "Delete",
	4:  "End",
	5:  "Prior",
	6:  "Next",
	15: "F5",
	17: "F6",
	18: "F7",
	19: "F8",
	20: "F9",
	21: "F10",
	23: "F11",
	24: "F12",
}

// Decoder turns raw terminal bytes into events. It is stateful: escape
// sequences and multibyte characters split across reads resume on the next
// Feed.
type Decoder struct {
	buf []byte
}

// Feed consumes a chunk of input and returns the events completed by it.
// Incomplete trailing sequences stay buffered.
func (d *Decoder) Feed(p []byte) []Event {
	d.buf = append(d.buf, p...)
	var out []Event
	for len(d.buf) > 0 {
		ev, n, ok := d.next()
		if !ok {
			break
		}
		d.buf = d.buf[n:]
		if ev != nil {
			out = append(out, *ev)
		}
	}
	return out
}

// Flush resolves a trailing lone escape byte as the Escape key. Terminals
// write escape sequences in one burst, so a read ending on a bare ESC is the
// key itself. Partial sequences stay buffered for the next Feed.
func (d *Decoder) Flush() []Event {
	if len(d.buf) == 1 && d.buf[0] == 0x1b {
		d.buf = d.buf[:0]
		return []Event{{Kind: KindKey, Sym: "Escape"}}
	}
	return nil
}

// next parses one item from the head of the buffer. It returns the event
// (nil when the item produces none), the bytes consumed, and whether enough
// input was available.
func (d *Decoder) next() (*Event, int, bool) {
	if d.buf[0] != 0x1b {
		return d.nextPlain()
	}
	if len(d.buf) == 1 {
		return nil, 0, false
	}

	switch d.buf[1] {
	case '[':
		return d.nextCSI()
	case 'O':
		return d.nextSS3()
	default:
		next := d.buf[1]
		if next >= 0x20 && next < utf8.RuneSelf {
			ev := eventForRune(rune(next))
			ev.Mods |= keymap.AltMask
			return ev, 2, true
		}
		// A stray escape; emit it and reprocess what follows.
		return &Event{Kind: KindKey, Sym: "Escape"}, 1, true
	}
}

func (d *Decoder) nextPlain() (*Event, int, bool) {
	b := d.buf[0]
	switch {
	case b == '\r' || b == '\n':
		return &Event{Kind: KindKey, Sym: "Return"}, 1, true
	case b == '\t':
		return &Event{Kind: KindKey, Sym: "Tab"}, 1, true
	case b == 0x7f || b == 0x08:
		return &Event{Kind: KindKey, Sym: "BackSpace"}, 1, true
	case b == ' ':
		return &Event{Kind: KindKey, Sym: "space", Char: " "}, 1, true
	case b < 0x20:
		// Control byte. 0x01..0x1a is Ctrl plus a letter; the rest has
		// no key mapping.
		if b >= 0x01 && b <= 0x1a {
			letter := string(rune('a' + b - 1))
			return &Event{Kind: KindKey, Sym: letter, Mods: keymap.CtrlMask}, 1, true
		}
		return nil, 1, true
	case b < utf8.RuneSelf:
		return eventForRune(rune(b)), 1, true
	default:
		if !utf8.FullRune(d.buf) {
			if len(d.buf) >= utf8.UTFMax {
				return nil, 1, true
			}
			return nil, 0, false
		}
		r, size := utf8.DecodeRune(d.buf)
		if r == utf8.RuneError && size == 1 {
			return nil, 1, true
		}
		return eventForRune(r), size, true
	}
}

// nextCSI parses ESC [ ... sequences: cursor keys, tilde keys, focus
// reports, and SGR mouse reports.
func (d *Decoder) nextCSI() (*Event, int, bool) {
	i := 2
	for i < len(d.buf) && (d.buf[i] < 0x40 || d.buf[i] > 0x7e) {
		i++
	}
	if i >= len(d.buf) {
		if len(d.buf) > maxSequence {
			return nil, len(d.buf), true
		}
		return nil, 0, false
	}

	final := d.buf[i]
	body := string(d.buf[2:i])
	n := i + 1

	switch final {
	case 'A', 'B', 'C', 'D', 'H', 'F':
		return &Event{Kind: KindKey, Sym: csiKeySyms[final], Mods: csiMods(body)}, n, true

	case '~':
		num, mods := parseTilde(body)
		sym, ok := tildeSyms[num]
		if !ok {
			return nil, n, true
		}
		return &Event{Kind: KindKey, Sym: sym, Mods: mods}, n, true

	case 'Z':
		return &Event{Kind: KindKey, Sym: "Tab", Mods: keymap.ShiftMask}, n, true

	case 'I':
		return &Event{Kind: KindFocus, Focused: true}, n, true

	case 'O':
		return &Event{Kind: KindFocus, Focused: false}, n, true

	case 'M', 'm':
		if strings.HasPrefix(body, "<") {
			return parseSGRMouse(body[1:], final, n)
		}
		return nil, n, true

	default:
		return nil, n, true
	}
}

// nextSS3 parses ESC O sequences, mainly F1 through F4.
func (d *Decoder) nextSS3() (*Event, int, bool) {
	if len(d.buf) < 3 {
		return nil, 0, false
	}
	var sym string
	switch d.buf[2] {
	case 'P':
		sym = "F1"
	case 'Q':
		sym = "F2"
	case 'R':
		sym = "F3"
	case 'S':
		sym = "F4"
	case 'H':
		sym = "Home"
	case 'F':
		sym = "End"
	default:
		return nil, 3, true
	}
	return &Event{Kind: KindKey, Sym: sym}, 3, true
}

func eventForRune(r rune) *Event {
	var mods uint32
	if unicode.IsUpper(r) {
		mods = keymap.ShiftMask
	}
	sym := string(r)
	if name, ok := punctNames[r]; ok {
		sym = name
	}
	return &Event{Kind: KindKey, Sym: sym, Char: string(r), Mods: mods}
}

// csiMods extracts the xterm modifier parameter from a CSI body like "1;5".
func csiMods(body string) uint32 {
	parts := strings.Split(body, ";")
	if len(parts) < 2 {
		return 0
	}
	param, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return xtermMods(param)
}

func parseTilde(body string) (int, uint32) {
	parts := strings.Split(body, ";")
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0
	}
	var mods uint32
	if len(parts) > 1 {
		if param, err := strconv.Atoi(parts[1]); err == nil {
			mods = xtermMods(param)
		}
	}
	return num, mods
}

// xtermMods decodes the xterm modifier parameter: the value minus one is a
// bitfield of shift, alt, ctrl, meta.
func xtermMods(param int) uint32 {
	if param <= 1 {
		return 0
	}
	bits := param - 1
	var mods uint32
	if bits&1 != 0 {
		mods |= keymap.ShiftMask
	}
	if bits&2 != 0 {
		mods |= keymap.AltMask
	}
	if bits&4 != 0 {
		mods |= keymap.CtrlMask
	}
	if bits&8 != 0 {
		mods |= keymap.MetaMask
	}
	return mods
}

// parseSGRMouse decodes the body of an SGR report, "b;x;y", already stripped
// of its leading '<'. Coordinates arrive one-based.
func parseSGRMouse(body string, final byte, n int) (*Event, int, bool) {
	parts := strings.Split(body, ";")
	if len(parts) != 3 {
		return nil, n, true
	}
	b, err1 := strconv.Atoi(parts[0])
	x, err2 := strconv.Atoi(parts[1])
	y, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, n, true
	}
	col, row := x-1, y-1

	motion := b&32 != 0
	wheel := b&64 != 0
	button := b & 3

	switch {
	case wheel:
		if motion {
			return nil, n, true
		}
		switch button {
		case 0:
			return &Event{Kind: KindWheel, Delta: 120, X: col, Y: row}, n, true
		case 1:
			return &Event{Kind: KindWheel, Delta: -120, X: col, Y: row}, n, true
		default:
			// Horizontal wheel; nothing to relay.
			return nil, n, true
		}
	case motion:
		return &Event{Kind: KindMotion, X: col, Y: row}, n, true
	case final == 'M' && button != 3:
		return &Event{Kind: KindButton, Button: button, X: col, Y: row}, n, true
	default:
		// Button releases and anything exotic.
		return nil, n, true
	}
}
