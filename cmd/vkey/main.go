// The vkey command captures keyboard and pointer input from the terminal it
// runs in and relays it to a remote input endpoint over a websocket.
package main

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/milliescient/vkey/internal/capture"
	"github.com/milliescient/vkey/internal/config"
	"github.com/milliescient/vkey/internal/event"
	"github.com/milliescient/vkey/internal/keymap"
	"github.com/milliescient/vkey/internal/term"
	"github.com/milliescient/vkey/internal/transport"
	"github.com/milliescient/vkey/internal/tray"
)

var logger = golog.Global().Named("vkey")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Address   string `flag:"0,usage=relay address (host:port or a ws:// URL)"`
	Config    string `flag:"config,usage=settings file path"`
	Tray      bool   `flag:"tray,usage=show a system tray icon"`
	NoPointer bool   `flag:"no-pointer,usage=do not relay pointer input"`
	Debug     bool   `flag:"debug"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger = golog.NewDevelopmentLogger("vkey")
	}

	var cfgMgr *config.Manager
	if argsParsed.Config != "" {
		cfgMgr = config.NewManagerWithPath(argsParsed.Config)
	} else {
		var err error
		cfgMgr, err = config.NewManager()
		if err != nil {
			return errors.Wrap(err, "locating settings")
		}
	}
	if err := cfgMgr.Load(); err != nil {
		logger.Warnw("ignoring saved settings", "error", err)
	}

	address := argsParsed.Address
	if address == "" {
		address = cfgMgr.Get().Address
	}
	if address == "" {
		return errors.New("no relay address given and none saved from a previous run")
	}

	return runRelay(ctx, address, cfgMgr, !argsParsed.NoPointer, argsParsed.Tray, logger)
}

func runRelay(
	ctx context.Context,
	address string,
	cfgMgr *config.Manager,
	relayPointer bool,
	useTray bool,
	logger golog.Logger,
) (err error) {
	client := transport.New(transport.Config{Logger: logger.Named("transport")})

	var t *tray.Tray
	if useTray {
		t = tray.New("vkey", "vkey input relay")
	}

	client.Subscribe(func(state transport.State) {
		logger.Infow("relay link", "state", state)
		if t != nil {
			t.SetStatus(state.String())
		}
	})

	surface, err := term.Open(term.Config{Logger: logger.Named("term")})
	if err != nil {
		return errors.Wrap(err, "capturing terminal input")
	}
	defer func() {
		err = multierr.Combine(err, surface.Close())
	}()

	sampler := capture.NewSampler(capture.SamplerConfig{
		Position: surface.Position,
		Bounds:   surface.Bounds,
		Emit: func(ev event.Event) {
			goutils.UncheckedError(client.Send(ev))
		},
		Logger: logger.Named("sampler"),
	})
	gate := capture.NewGate(sampler)
	gate.SetPointerRelay(relayPointer)
	// The terminal we just took over has focus until it reports otherwise.
	gate.FocusGained()
	defer sampler.Disarm()

	if err := client.Start(address); err != nil {
		return err
	}
	defer client.Stop()

	if saved := cfgMgr.Get(); saved.Address != address {
		cfgMgr.SetAddress(address)
		if err := cfgMgr.Save(); err != nil {
			logger.Warnw("could not remember relay address", "error", err)
		}
	}

	dispatch := func(ev term.Event) {
		switch ev.Kind {
		case term.KindFocus:
			if ev.Focused {
				gate.FocusGained()
			} else {
				gate.FocusLost()
			}
		case term.KindKey:
			if !gate.ShouldCapture() {
				return
			}
			key, ok := keymap.Normalize(ev.Sym, ev.Char, ev.Mods)
			if !ok {
				return
			}
			goutils.UncheckedError(client.Send(key))
		case term.KindButton:
			sampler.Click(ev.Button)
		case term.KindWheel:
			sampler.Scroll(ev.Delta)
		case term.KindMotion:
			// Positions are polled by the sampler, not forwarded per report.
		}
	}

	pump := func(pumpCtx context.Context) {
		for {
			select {
			case <-pumpCtx.Done():
				return
			case ev, ok := <-surface.Events():
				if !ok {
					return
				}
				dispatch(ev)
			}
		}
	}

	if t == nil {
		logger.Infow("relaying input; interrupt to stop", "address", address)
		pump(ctx)
		return nil
	}

	t.AddCheckItem("Relay pointer", relayPointer, gate.SetPointerRelay)
	t.AddSeparator()
	t.AddMenuItem("Quit", t.Stop)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	var activeBackgroundWorkers sync.WaitGroup
	activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() { pump(runCtx) }, activeBackgroundWorkers.Done)
	goutils.PanicCapturingGo(func() {
		<-runCtx.Done()
		t.Stop()
	})

	logger.Infow("relaying input", "address", address)
	// Run blocks until quit from the menu or a signal cancels the context.
	t.Run()
	runCancel()
	activeBackgroundWorkers.Wait()
	return nil
}
