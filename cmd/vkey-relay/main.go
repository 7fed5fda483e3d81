// The vkey-relay command runs the receiving endpoint: it accepts capture
// clients over websocket and logs every event they deliver.
package main

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	goutils "go.viam.com/utils"

	"github.com/milliescient/vkey/internal/event"
	"github.com/milliescient/vkey/internal/relay"
)

var logger = golog.Global().Named("vkey-relay")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Port  goutils.NetPortFlag `flag:"0"`
	Debug bool                `flag:"debug"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger = golog.NewDevelopmentLogger("vkey-relay")
	}
	if argsParsed.Port == 0 {
		argsParsed.Port = goutils.NetPortFlag(relay.DefaultPort)
	}

	server := relay.NewServer(int(argsParsed.Port), logHandler(logger), logger.Named("relay"))
	if err := server.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Stop(stopCtx)
}

// logHandler prints each decoded event. Swapping this for a platform
// injector turns the relay into a full remote-control endpoint.
func logHandler(logger golog.Logger) relay.Handler {
	return relay.HandlerFunc(func(ev event.Event) error {
		switch ev := ev.(type) {
		case event.Key:
			logger.Infow("key", "key", ev.Key, "code", ev.Code,
				"shift", ev.Shift, "ctrl", ev.Ctrl, "alt", ev.Alt, "meta", ev.Meta)
		case event.Move:
			logger.Debugw("move", "x", ev.X, "y", ev.Y)
		case event.Click:
			logger.Infow("click", "button", ev.Button)
		case event.Scroll:
			logger.Infow("scroll", "steps", ev.Steps)
		default:
			logger.Warnw("unhandled event", "event", ev)
		}
		return nil
	})
}
