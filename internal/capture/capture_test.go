package capture

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/milliescient/vkey/internal/event"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) emit(ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

func noPosition() (float64, float64, bool) { return 0, 0, false }

func newTestSampler(t *testing.T, rec *recorder, pos PositionFunc) *Sampler {
	t.Helper()
	return NewSampler(SamplerConfig{
		Position: pos,
		Bounds:   func() (float64, float64) { return 10, 10 },
		Emit:     rec.emit,
		Interval: time.Millisecond,
		Logger:   golog.NewTestLogger(t),
	})
}

func TestGateArming(t *testing.T) {
	var rec recorder
	s := newTestSampler(t, &rec, noPosition)
	g := NewGate(s)

	test.That(t, s.Armed(), test.ShouldBeFalse)
	test.That(t, g.ShouldCapture(), test.ShouldBeFalse)

	// The toggle alone is not enough without focus.
	g.SetPointerRelay(true)
	test.That(t, s.Armed(), test.ShouldBeFalse)

	g.FocusGained()
	test.That(t, s.Armed(), test.ShouldBeTrue)
	test.That(t, g.ShouldCapture(), test.ShouldBeTrue)

	g.FocusLost()
	test.That(t, s.Armed(), test.ShouldBeFalse)
	test.That(t, g.ShouldCapture(), test.ShouldBeFalse)

	g.FocusGained()
	test.That(t, s.Armed(), test.ShouldBeTrue)

	// Disabling the toggle disarms but keyboard capture still follows
	// focus.
	g.SetPointerRelay(false)
	test.That(t, s.Armed(), test.ShouldBeFalse)
	test.That(t, g.ShouldCapture(), test.ShouldBeTrue)

	g.FocusLost()
	g.FocusGained()
	test.That(t, s.Armed(), test.ShouldBeFalse)

	g.SetPointerRelay(true)
	test.That(t, s.Armed(), test.ShouldBeTrue)
	test.That(t, g.Mode(), test.ShouldResemble, Mode{Focused: true, PointerRelayEnabled: true})

	g.FocusLost()
}

func TestGateNilSampler(t *testing.T) {
	g := NewGate(nil)
	g.SetPointerRelay(true)
	g.FocusGained()
	test.That(t, g.ShouldCapture(), test.ShouldBeTrue)
	g.FocusLost()
	g.SetPointerRelay(false)
	test.That(t, g.Mode(), test.ShouldResemble, Mode{})
}

func TestSamplerEmitsOnMovement(t *testing.T) {
	var rec recorder
	var posMu sync.Mutex
	x, y := 2.0, 5.0
	s := newTestSampler(t, &rec, func() (float64, float64, bool) {
		posMu.Lock()
		defer posMu.Unlock()
		return x, y, true
	})

	s.Arm()
	defer s.Disarm()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, rec.snapshot(), test.ShouldResemble, []event.Event{
			event.Move{X: 0.2, Y: 0.5},
		})
	})

	// The pointer has not moved, so further ticks stay silent.
	time.Sleep(20 * time.Millisecond)
	test.That(t, rec.snapshot(), test.ShouldHaveLength, 1)

	posMu.Lock()
	x, y = 4, 5
	posMu.Unlock()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, rec.snapshot(), test.ShouldResemble, []event.Event{
			event.Move{X: 0.2, Y: 0.5},
			event.Move{X: 0.4, Y: 0.5},
		})
	})
}

func TestSamplerClampsToUnitSquare(t *testing.T) {
	var rec recorder
	s := newTestSampler(t, &rec, func() (float64, float64, bool) {
		return -5, 50, true
	})

	s.Arm()
	defer s.Disarm()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, rec.snapshot(), test.ShouldResemble, []event.Event{
			event.Move{X: 0, Y: 1},
		})
	})
}

func TestSamplerZeroBounds(t *testing.T) {
	var rec recorder
	s := NewSampler(SamplerConfig{
		Position: func() (float64, float64, bool) { return 3, 7, true },
		Bounds:   func() (float64, float64) { return 0, 0 },
		Emit:     rec.emit,
		Interval: time.Millisecond,
		Logger:   golog.NewTestLogger(t),
	})

	s.Arm()
	defer s.Disarm()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, rec.snapshot(), test.ShouldResemble, []event.Event{
			event.Move{X: 0, Y: 0},
		})
	})
}

func TestSamplerWaitsForPosition(t *testing.T) {
	var rec recorder
	var known atomic.Bool
	s := newTestSampler(t, &rec, func() (float64, float64, bool) {
		return 5, 5, known.Load()
	})

	s.Arm()
	defer s.Disarm()

	time.Sleep(20 * time.Millisecond)
	test.That(t, rec.snapshot(), test.ShouldBeEmpty)

	known.Store(true)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, rec.snapshot(), test.ShouldResemble, []event.Event{
			event.Move{X: 0.5, Y: 0.5},
		})
	})
}

func TestSamplerReArmResets(t *testing.T) {
	var rec recorder
	s := newTestSampler(t, &rec, func() (float64, float64, bool) {
		return 2, 5, true
	})

	s.Arm()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, rec.snapshot(), test.ShouldHaveLength, 1)
	})
	s.Disarm()

	// Re-arming forgets the previous position, so the same reading emits
	// again.
	s.Arm()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, rec.snapshot(), test.ShouldHaveLength, 2)
	})
	s.Disarm()
}

func TestDisarmStopsTicks(t *testing.T) {
	var polls atomic.Int64
	var rec recorder
	s := newTestSampler(t, &rec, func() (float64, float64, bool) {
		polls.Add(1)
		return 0, 0, false
	})

	s.Arm()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, polls.Load(), test.ShouldBeGreaterThan, 0)
	})
	s.Disarm()

	after := polls.Load()
	time.Sleep(20 * time.Millisecond)
	test.That(t, polls.Load(), test.ShouldEqual, after)

	// Disarming again is a no-op.
	s.Disarm()
	test.That(t, s.Armed(), test.ShouldBeFalse)
}

func TestArmIdempotent(t *testing.T) {
	var rec recorder
	s := newTestSampler(t, &rec, noPosition)

	s.Arm()
	s.Arm()
	test.That(t, s.Armed(), test.ShouldBeTrue)
	s.Disarm()
	test.That(t, s.Armed(), test.ShouldBeFalse)
}

func TestScrollNormalization(t *testing.T) {
	for _, tc := range []struct{ raw, steps int }{
		{0, 0},
		{120, 1},
		{-120, -1},
		{240, 2},
		{-360, -3},
		{45, 45},
		{-45, -45},
		{121, 121},
	} {
		test.That(t, normalizeScroll(tc.raw, DefaultScrollNotch), test.ShouldEqual, tc.steps)
	}
}

func TestSamplerScroll(t *testing.T) {
	var rec recorder
	s := newTestSampler(t, &rec, noPosition)

	// Disarmed wheel movement goes nowhere.
	s.Scroll(120)
	test.That(t, rec.snapshot(), test.ShouldBeEmpty)

	s.Arm()
	s.Scroll(120)
	s.Scroll(-240)
	s.Scroll(45)
	s.Scroll(0)
	s.Disarm()
	s.Scroll(120)

	test.That(t, rec.snapshot(), test.ShouldResemble, []event.Event{
		event.Scroll{Steps: 1},
		event.Scroll{Steps: -2},
		event.Scroll{Steps: 45},
	})
}

func TestSamplerClick(t *testing.T) {
	var rec recorder
	s := newTestSampler(t, &rec, noPosition)

	s.Click(0)
	test.That(t, rec.snapshot(), test.ShouldBeEmpty)

	s.Arm()
	s.Click(0)
	s.Click(2)
	s.Click(7)
	s.Disarm()
	s.Click(0)

	test.That(t, rec.snapshot(), test.ShouldResemble, []event.Event{
		event.Click{Button: event.ButtonPrimary},
		event.Click{Button: event.ButtonSecondary},
		event.Click{Button: event.ButtonSecondary},
	})
}
