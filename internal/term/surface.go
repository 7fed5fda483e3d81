// Package term turns the controlling terminal into an input capture surface:
// raw mode plus focus and mouse reporting in, a stream of decoded key, focus,
// and pointer events out.
package term

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// Escape sequences enabling focus reporting, any-motion mouse tracking, and
// SGR extended mouse coordinates. Disabled in reverse order on close.
const (
	enableCapture  = "\x1b[?1004h\x1b[?1003h\x1b[?1006h"
	disableCapture = "\x1b[?1006l\x1b[?1003l\x1b[?1004l"
)

// Config configures a Surface. Nil files default to stdin and stdout.
type Config struct {
	Input  *os.File
	Output *os.File
	Logger golog.Logger
}

// Surface is an open capture terminal. It keeps the last reported pointer
// cell so a sampler can poll it, and exposes everything else as events.
type Surface struct {
	input  *os.File
	output *os.File
	logger golog.Logger

	decoder Decoder
	events  chan Event

	mu         sync.Mutex
	closed     bool
	restore    func() error
	posX, posY float64
	hasPos     bool

	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// Open puts the terminal into raw capture mode and starts decoding its
// input. The caller must Close to restore the terminal.
func Open(config Config) (*Surface, error) {
	input := config.Input
	if input == nil {
		input = os.Stdin
	}
	output := config.Output
	if output == nil {
		output = os.Stdout
	}
	logger := config.Logger
	if logger == nil {
		logger = golog.Global().Named("term")
	}

	restore, err := enterRawMode(input.Fd())
	if err != nil {
		return nil, errors.Wrap(err, "entering raw mode")
	}

	if _, err := output.WriteString(enableCapture); err != nil {
		return nil, multierr.Combine(
			errors.Wrap(err, "enabling capture reports"),
			restore(),
		)
	}

	s := &Surface{
		input:   input,
		output:  output,
		logger:  logger,
		events:  make(chan Event, 64),
		restore: restore,
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		s.readLoop(cancelCtx)
	}, s.activeBackgroundWorkers.Done)
	return s, nil
}

// Events returns the stream of decoded terminal events. The channel closes
// when the input ends or the surface is closed.
func (s *Surface) Events() <-chan Event {
	return s.events
}

// Position returns the last pointer cell the terminal reported, zero based.
// ok is false until the pointer is first seen.
func (s *Surface) Position() (x, y float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posX, s.posY, s.hasPos
}

// Bounds returns the terminal size in cells, falling back to 80x24 when the
// size cannot be read.
func (s *Surface) Bounds() (width, height float64) {
	if s.output != nil {
		if w, h, ok := windowSize(s.output.Fd()); ok {
			return w, h
		}
	}
	return 80, 24
}

// Close stops capture, disables the terminal reports, and restores the
// original terminal modes. The pending read may stay blocked on platforms
// without terminal read deadlines; it dies with the process.
func (s *Surface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	restore := s.restore
	s.mu.Unlock()

	s.cancel()

	// Best effort unblock of the read loop.
	utils.UncheckedError(s.input.SetReadDeadline(time.Now()))

	var err error
	if _, werr := s.output.WriteString(disableCapture); werr != nil {
		err = multierr.Combine(err, errors.Wrap(werr, "disabling capture reports"))
	}
	if restore != nil {
		err = multierr.Combine(err, errors.Wrap(restore(), "restoring terminal"))
	}
	return err
}

func (s *Surface) readLoop(ctx context.Context) {
	defer close(s.events)
	buf := make([]byte, 1024)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := s.input.Read(buf)
		if n > 0 {
			evs := s.decoder.Feed(buf[:n])
			evs = append(evs, s.decoder.Flush()...)
			for _, ev := range evs {
				s.track(ev)
				select {
				case s.events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				s.logger.Debugw("input read failed", "error", err)
			}
			return
		}
	}
}

// track caches the pointer cell carried by mouse reports.
func (s *Surface) track(ev Event) {
	switch ev.Kind {
	case KindMotion, KindButton, KindWheel:
	default:
		return
	}
	s.mu.Lock()
	s.posX, s.posY = float64(ev.X), float64(ev.Y)
	s.hasPos = true
	s.mu.Unlock()
}
