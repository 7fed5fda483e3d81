// The vkey-sim command drives the capture pipeline with synthetic input so a
// relay deployment can be exercised without a terminal.
package main

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/milliescient/vkey/internal/capture"
	"github.com/milliescient/vkey/internal/event"
	"github.com/milliescient/vkey/internal/keymap"
	"github.com/milliescient/vkey/internal/transport"
)

var logger = golog.Global().Named("vkey-sim")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Address  string `flag:"0,usage=relay address (host:port or a ws:// URL)"`
	Mode     string `flag:"mode,usage=typing|pointer|mixed"`
	Count    int    `flag:"count,usage=number of synthetic events"`
	Interval int    `flag:"interval,usage=milliseconds between events"`
	Debug    bool   `flag:"debug"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger = golog.NewDevelopmentLogger("vkey-sim")
	}
	if argsParsed.Address == "" {
		return errors.New("a relay address is required")
	}
	if argsParsed.Mode == "" {
		argsParsed.Mode = "mixed"
	}
	if argsParsed.Count <= 0 {
		argsParsed.Count = 100
	}
	if argsParsed.Interval <= 0 {
		argsParsed.Interval = 50
	}

	client := transport.New(transport.Config{Logger: logger.Named("transport")})
	if err := client.Start(argsParsed.Address); err != nil {
		return err
	}
	defer client.Stop()

	if !waitConnected(ctx, client) {
		return errors.New("gave up waiting for the relay connection")
	}

	interval := time.Duration(argsParsed.Interval) * time.Millisecond
	switch argsParsed.Mode {
	case "typing":
		return simulateTyping(ctx, client, argsParsed.Count, interval, logger)
	case "pointer":
		return simulatePointer(ctx, client, argsParsed.Count, interval, logger)
	case "mixed":
		half := argsParsed.Count / 2
		if err := simulateTyping(ctx, client, half, interval, logger); err != nil {
			return err
		}
		return simulatePointer(ctx, client, argsParsed.Count-half, interval, logger)
	default:
		return errors.Errorf("unknown mode %q", argsParsed.Mode)
	}
}

// waitConnected polls until the link is up or ten seconds pass.
func waitConnected(ctx context.Context, client *transport.Client) bool {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if client.Connected() {
			return true
		}
		if !goutils.SelectContextOrWait(ctx, 100*time.Millisecond) {
			return false
		}
	}
	return false
}

type stroke struct {
	sym   string
	char  string
	state uint32
}

// typingScript loops through letters, a shifted capital, digits, named keys,
// and modifier chords, covering every kind of key the relay understands.
var typingScript = []stroke{
	{"h", "h", 0},
	{"e", "e", 0},
	{"l", "l", 0},
	{"l", "l", 0},
	{"o", "o", 0},
	{"space", " ", 0},
	{"W", "W", keymap.ShiftMask},
	{"o", "o", 0},
	{"r", "r", 0},
	{"l", "l", 0},
	{"d", "d", 0},
	{"1", "1", 0},
	{"Return", "\r", 0},
	{"a", "a", keymap.CtrlMask},
	{"Tab", "\t", keymap.AltMask},
	{"BackSpace", "\x08", 0},
	{"Up", "", 0},
	{"Escape", "", 0},
}

func simulateTyping(
	ctx context.Context,
	client *transport.Client,
	count int,
	interval time.Duration,
	logger golog.Logger,
) error {
	sent := 0
	for sent < count {
		for _, st := range typingScript {
			if sent >= count {
				break
			}
			key, ok := keymap.Normalize(st.sym, st.char, st.state)
			if !ok {
				continue
			}
			if err := client.Send(key); err != nil {
				return err
			}
			sent++
			if !goutils.SelectContextOrWait(ctx, interval) {
				return nil
			}
		}
	}
	logger.Infow("typing pass done", "keys", sent)
	return nil
}

// simulatePointer runs the real sampling pipeline against a scripted pointer
// that orbits the center of a virtual 1920x1080 screen, with clicks and
// scrolls sprinkled in.
func simulatePointer(
	ctx context.Context,
	client *transport.Client,
	count int,
	interval time.Duration,
	logger golog.Logger,
) error {
	const width, height = 1920.0, 1080.0

	var mu sync.Mutex
	angle := 0.0
	position := func() (float64, float64, bool) {
		mu.Lock()
		defer mu.Unlock()
		x := width/2 + width/4*math.Cos(angle)
		y := height/2 + height/4*math.Sin(angle)
		return x, y, true
	}
	advance := func() {
		mu.Lock()
		defer mu.Unlock()
		angle += 2 * math.Pi / 60
	}

	sampler := capture.NewSampler(capture.SamplerConfig{
		Position: position,
		Bounds:   func() (float64, float64) { return width, height },
		Emit: func(ev event.Event) {
			goutils.UncheckedError(client.Send(ev))
		},
		Logger: logger.Named("sampler"),
	})
	gate := capture.NewGate(sampler)
	gate.SetPointerRelay(true)
	gate.FocusGained()
	defer sampler.Disarm()

	for i := 0; i < count; i++ {
		advance()
		switch {
		case i%20 == 19:
			sampler.Click(i / 20 % 3)
		case i%7 == 6:
			delta := 120
			if i%2 == 0 {
				delta = -120
			}
			sampler.Scroll(delta)
		}
		if !goutils.SelectContextOrWait(ctx, interval) {
			return nil
		}
	}
	logger.Infow("pointer pass done", "steps", count)
	return nil
}
