// Package capture decides which locally observed input reaches the wire and
// paces raw pointer samples into move events.
package capture

import "sync"

// Mode is a snapshot of the capture gate.
type Mode struct {
	// Focused is true while the capture surface has input focus.
	Focused bool

	// PointerRelayEnabled is the user-controlled pointer toggle.
	PointerRelayEnabled bool
}

// Gate tracks focus and the pointer-relay toggle and arms or disarms the
// pointer sampler as the two change. Keyboard capture follows focus alone;
// pointer relay requires focus and the toggle together.
type Gate struct {
	mu      sync.Mutex
	mode    Mode
	sampler *Sampler
}

// NewGate returns a gate controlling the given sampler. A nil sampler is
// allowed for keyboard-only use.
func NewGate(sampler *Sampler) *Gate {
	return &Gate{sampler: sampler}
}

// FocusGained records focus and arms the sampler if pointer relay is on.
func (g *Gate) FocusGained() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode.Focused = true
	if g.sampler != nil && g.mode.PointerRelayEnabled {
		g.sampler.Arm()
	}
}

// FocusLost records the loss and immediately disarms the sampler. No
// pointer or keyboard events are produced until focus returns.
func (g *Gate) FocusLost() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode.Focused = false
	if g.sampler != nil {
		g.sampler.Disarm()
	}
}

// SetPointerRelay flips the pointer toggle. Disabling always disarms;
// enabling arms only if the surface is currently focused.
func (g *Gate) SetPointerRelay(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode.PointerRelayEnabled = enabled
	if g.sampler == nil {
		return
	}
	if !enabled {
		g.sampler.Disarm()
		return
	}
	if g.mode.Focused {
		g.sampler.Arm()
	}
}

// ShouldCapture reports whether keyboard events should currently be relayed.
func (g *Gate) ShouldCapture() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode.Focused
}

// Mode returns the current gate state.
func (g *Gate) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}
