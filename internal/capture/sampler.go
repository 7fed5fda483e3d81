package capture

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/utils"

	"github.com/milliescient/vkey/internal/event"
)

const (
	// DefaultInterval paces pointer samples at roughly 60Hz.
	DefaultInterval = 16 * time.Millisecond

	// DefaultScrollNotch is the wheel delta most platforms report per
	// detent.
	DefaultScrollNotch = 120
)

// PositionFunc reports the current pointer position in surface coordinates.
// ok is false until a position has been observed.
type PositionFunc func() (x, y float64, ok bool)

// BoundsFunc reports the surface extent used to normalize positions.
type BoundsFunc func() (width, height float64)

// SamplerConfig configures a Sampler.
type SamplerConfig struct {
	Position    PositionFunc
	Bounds      BoundsFunc
	Emit        func(event.Event)
	Interval    time.Duration
	ScrollNotch int
	Logger      golog.Logger
}

// Sampler turns a stream of raw pointer readings into paced move events.
// While armed it polls the position on a fixed interval, skips samples where
// the pointer has not moved, and normalizes the rest into the unit square.
// Clicks and wheel deltas pass through unpaced but respect the armed state.
type Sampler struct {
	position PositionFunc
	bounds   BoundsFunc
	emit     func(event.Event)
	interval time.Duration
	notch    int
	logger   golog.Logger

	mu           sync.Mutex
	armed        bool
	lastX, lastY float64
	hasLast      bool
	cancel       func()

	activeBackgroundWorkers sync.WaitGroup
}

// NewSampler returns a stopped sampler. Zero config values fall back to the
// package defaults.
func NewSampler(config SamplerConfig) *Sampler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.ScrollNotch <= 0 {
		config.ScrollNotch = DefaultScrollNotch
	}
	if config.Logger == nil {
		config.Logger = golog.Global().Named("sampler")
	}
	return &Sampler{
		position: config.Position,
		bounds:   config.Bounds,
		emit:     config.Emit,
		interval: config.Interval,
		notch:    config.ScrollNotch,
		logger:   config.Logger,
	}
}

// Arm starts the sampling loop. Arming an armed sampler is a no-op. The
// first tick fires one interval after arming, and the previous-position
// memory is reset so the first reading always emits.
func (s *Sampler) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.armed {
		return
	}
	s.armed = true
	s.hasLast = false

	cancelCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		for utils.SelectContextOrWait(cancelCtx, s.interval) {
			s.tick()
		}
	}, s.activeBackgroundWorkers.Done)
	s.logger.Debug("pointer sampler armed")
}

// Disarm stops the sampling loop and waits for it to exit. Once Disarm
// returns no further events are emitted. Disarming a disarmed sampler is a
// no-op.
func (s *Sampler) Disarm() {
	s.mu.Lock()
	if !s.armed {
		s.mu.Unlock()
		return
	}
	s.armed = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.activeBackgroundWorkers.Wait()
	s.logger.Debug("pointer sampler disarmed")
}

// Armed reports whether the sampling loop is running.
func (s *Sampler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Click emits a press for the given raw button number if armed.
func (s *Sampler) Click(rawButton int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed || s.emit == nil {
		return
	}
	s.emit(event.Click{Button: event.ButtonFromRaw(rawButton)})
}

// Scroll emits wheel movement if armed. Raw deltas that are whole notches
// collapse to the notch count; anything else passes through untouched. A
// zero delta emits nothing.
func (s *Sampler) Scroll(rawDelta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed || s.emit == nil {
		return
	}
	steps := normalizeScroll(rawDelta, s.notch)
	if steps == 0 {
		return
	}
	s.emit(event.Scroll{Steps: steps})
}

// tick emits under the sampler lock so Disarm can guarantee nothing fires
// after it returns.
func (s *Sampler) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed || s.position == nil || s.emit == nil {
		return
	}
	x, y, ok := s.position()
	if !ok {
		return
	}
	if s.hasLast && x == s.lastX && y == s.lastY {
		return
	}
	s.lastX, s.lastY = x, y
	s.hasLast = true

	nx, ny := x, y
	if s.bounds != nil {
		width, height := s.bounds()
		nx = normalize(x, width)
		ny = normalize(y, height)
	}
	s.emit(event.Move{X: clampUnit(nx), Y: clampUnit(ny)})
}

func normalizeScroll(raw, notch int) int {
	if raw == 0 {
		return 0
	}
	if raw%notch == 0 {
		return raw / notch
	}
	return raw
}

func normalize(v, extent float64) float64 {
	if extent <= 0 {
		return 0
	}
	return v / extent
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
