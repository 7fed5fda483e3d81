package keymap

import (
	"fmt"
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/milliescient/vkey/internal/event"
)

func TestNormalizeLetters(t *testing.T) {
	for r := 'a'; r <= 'z'; r++ {
		sym := string(r)
		ev, ok := Normalize(sym, sym, 0)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, ev.Key, test.ShouldEqual, sym)
		test.That(t, ev.Code, test.ShouldEqual, "Key"+strings.ToUpper(sym))
	}
}

func TestNormalizeUppercaseLetters(t *testing.T) {
	ev, ok := Normalize("A", "A", ShiftMask)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ev.Key, test.ShouldEqual, "A")
	test.That(t, ev.Code, test.ShouldEqual, "KeyA")
	test.That(t, ev.Shift, test.ShouldBeTrue)
}

func TestNormalizeDigits(t *testing.T) {
	for r := '0'; r <= '9'; r++ {
		sym := string(r)
		ev, ok := Normalize(sym, sym, 0)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, ev.Key, test.ShouldEqual, sym)
		test.That(t, ev.Code, test.ShouldEqual, "Digit"+sym)
	}
}

func TestNormalizeNamedKeys(t *testing.T) {
	for _, tc := range []struct {
		sym  string
		char string
		key  string
		code string
	}{
		{"Up", "", "Up", "ArrowUp"},
		{"Down", "", "Down", "ArrowDown"},
		{"Left", "", "Left", "ArrowLeft"},
		{"Right", "", "Right", "ArrowRight"},
		{"Prior", "", "Prior", "PageUp"},
		{"Next", "", "Next", "PageDown"},
		{"Return", "\r", "Return", "Enter"},
		{"BackSpace", "\x08", "BackSpace", "Backspace"},
		{"Escape", "\x1b", "Escape", "Escape"},
		{"space", " ", " ", "Space"},
		{"Tab", "\t", "Tab", "Tab"},
		{"F5", "", "F5", "F5"},
		{"F12", "", "F12", "F12"},
		{"bracketleft", "[", "[", "BracketLeft"},
		{"apostrophe", "'", "'", "Quote"},
		{"grave", "`", "`", "Backquote"},
		{"slash", "/", "/", "Slash"},
	} {
		t.Run(tc.sym, func(t *testing.T) {
			ev, ok := Normalize(tc.sym, tc.char, 0)
			test.That(t, ok, test.ShouldBeTrue)
			test.That(t, ev.Key, test.ShouldEqual, tc.key)
			test.That(t, ev.Code, test.ShouldEqual, tc.code)
		})
	}
}

func TestNormalizeDropsBareModifiers(t *testing.T) {
	for _, sym := range []string{
		"Shift_L", "Shift_R",
		"Control_L", "Control_R",
		"Alt_L", "Alt_R",
		"Meta_L", "Meta_R",
		"Super_L", "Super_R",
	} {
		_, ok := Normalize(sym, "", ShiftMask|CtrlMask)
		test.That(t, ok, test.ShouldBeFalse)
	}
}

func TestNormalizeDropsUnknownPunctuation(t *testing.T) {
	// Printable, not a letter, and not in the named table: no code exists.
	_, ok := Normalize("exclam", "!", ShiftMask)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestNormalizeDropsUnmappable(t *testing.T) {
	_, ok := Normalize("Caps_Lock", "", 0)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestNormalizeModifierState(t *testing.T) {
	for state := uint32(0); state < 0x20; state++ {
		if state&0x2 != 0 {
			continue // no mask assigned to bit 1
		}
		t.Run(fmt.Sprintf("state=%#x", state), func(t *testing.T) {
			ev, ok := Normalize("a", "a", state)
			test.That(t, ok, test.ShouldBeTrue)
			test.That(t, ev.Shift, test.ShouldEqual, state&ShiftMask != 0)
			test.That(t, ev.Ctrl, test.ShouldEqual, state&CtrlMask != 0)
			test.That(t, ev.Alt, test.ShouldEqual, state&AltMask != 0)
			test.That(t, ev.Meta, test.ShouldEqual, state&MetaMask != 0)
		})
	}
}

func TestNormalizeCharFallback(t *testing.T) {
	// A sym with no table entry still maps when the typed character is a
	// letter.
	ev, ok := Normalize("odiaeresis", "ö", 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ev.Key, test.ShouldEqual, "ö")
	test.That(t, ev.Code, test.ShouldEqual, "KeyÖ")
}

func TestNormalizeKeyFieldPrefersChar(t *testing.T) {
	ev, ok := Normalize("a", "a", 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ev, test.ShouldResemble, event.Key{Key: "a", Code: "KeyA"})

	// Control characters are not printable, so the sym name wins.
	ev, ok = Normalize("Return", "\r", 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ev.Key, test.ShouldEqual, "Return")
}
