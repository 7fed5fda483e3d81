// Package transport maintains the websocket link carrying encoded input
// events to the relay. The link is kept alive by a retry loop with a fixed
// delay; sends are best effort and never block the caller.
package transport

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/milliescient/vkey/internal/event"
	"github.com/milliescient/vkey/internal/protocol"
)

const (
	// DefaultRetryDelay separates reconnect attempts.
	DefaultRetryDelay = time.Second

	// DefaultDialTimeout bounds a single dial attempt.
	DefaultDialTimeout = 5 * time.Second

	sendBuffer     = 64
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 4096
)

var (
	// ErrAlreadyStarted is returned by Start when the client is already
	// running against a different address.
	ErrAlreadyStarted = errors.New("client already started")

	// ErrStopped is returned by Start after Stop. A stopped client cannot
	// be restarted.
	ErrStopped = errors.New("client stopped")
)

// A Dialer opens a websocket connection to the given URL.
type Dialer func(ctx context.Context, urlStr string) (*websocket.Conn, error)

// A Listener observes connection state transitions.
type Listener func(State)

// Config configures a Client. Zero values fall back to package defaults.
type Config struct {
	RetryDelay  time.Duration
	DialTimeout time.Duration
	Dialer      Dialer
	Logger      golog.Logger
}

// Client relays canonical events to a remote endpoint over a websocket it
// keeps alive itself. Each connection gets a fresh write buffer, so events
// accepted while the link is down are dropped rather than delivered late
// after a reconnect.
type Client struct {
	retryDelay time.Duration
	dial       Dialer
	logger     golog.Logger

	mu        sync.Mutex
	started   bool
	stopped   bool
	address   string
	state     State
	listeners []Listener
	conn      *websocket.Conn
	send      chan []byte
	cancel    func()

	activeBackgroundWorkers sync.WaitGroup
}

// New returns an idle client; nothing happens until Start.
func New(config Config) *Client {
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	dial := config.Dialer
	if dial == nil {
		dial = func(ctx context.Context, urlStr string) (*websocket.Conn, error) {
			dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
			defer cancel()
			conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, urlStr, nil)
			return conn, err
		}
	}
	logger := config.Logger
	if logger == nil {
		logger = golog.Global().Named("transport")
	}
	return &Client{
		retryDelay: config.RetryDelay,
		dial:       dial,
		logger:     logger,
		state:      Disconnected,
	}
}

// NormalizeAddress turns a bare host:port or websocket URL into the URL to
// dial. Addresses without a scheme get ws:// prepended.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", errors.New("empty relay address")
	}
	if !strings.Contains(address, "://") {
		address = "ws://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", errors.Wrap(err, "invalid relay address")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", errors.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("relay address missing host")
	}
	return u.String(), nil
}

// Subscribe registers a listener for state transitions. Listeners registered
// before Start observe every change; callbacks must not block.
func (c *Client) Subscribe(listener Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// Start launches the connection loop against the given address and returns
// immediately. The loop dials, serves the connection until it drops, then
// waits the retry delay and dials again, forever, until Stop. Starting a
// running client with the same address is a no-op.
func (c *Client) Start(address string) error {
	urlStr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if c.started {
		if c.address == urlStr {
			return nil
		}
		return ErrAlreadyStarted
	}
	c.started = true
	c.address = urlStr

	cancelCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		c.run(cancelCtx, urlStr)
	}, c.activeBackgroundWorkers.Done)
	return nil
}

func (c *Client) run(ctx context.Context, urlStr string) {
	for ctx.Err() == nil {
		c.setState(Connecting)
		conn, err := c.dial(ctx, urlStr)
		if err != nil {
			c.logger.Debugw("dial failed", "address", urlStr, "error", err)
			c.setState(Disconnected)
			if !utils.SelectContextOrWait(ctx, c.retryDelay) {
				return
			}
			continue
		}

		c.logger.Infow("connected", "address", urlStr)
		c.serve(ctx, conn)
		c.setState(Disconnected)
		c.logger.Infow("disconnected", "address", urlStr)

		if !utils.SelectContextOrWait(ctx, c.retryDelay) {
			return
		}
	}
}

// serve owns one connection from install to teardown. The send channel is
// created per connection; whatever is left in it when the connection dies is
// abandoned with it.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	send := make(chan []byte, sendBuffer)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		utils.UncheckedErrorFunc(conn.Close)
		return
	}
	c.conn = conn
	c.send = send
	c.mu.Unlock()

	c.setState(Connected)

	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()

	var pumps sync.WaitGroup
	pumps.Add(1)
	utils.PanicCapturingGo(func() {
		defer pumps.Done()
		c.writePump(connCtx, conn, send)
	})

	c.readPump(conn)
	connCancel()

	c.mu.Lock()
	c.conn = nil
	c.send = nil
	c.mu.Unlock()

	pumps.Wait()
}

// readPump drains the connection so pings, pongs, and close frames get
// handled; the relay sends nothing the client acts on.
func (c *Client) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	utils.UncheckedError(conn.SetReadDeadline(time.Now().Add(pongWait)))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				c.logger.Debugw("read error", "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer utils.UncheckedErrorFunc(conn.Close)

	for {
		select {
		case data := <-send:
			utils.UncheckedError(conn.SetWriteDeadline(time.Now().Add(writeWait)))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debugw("write error", "error", err)
				return
			}

		case <-ticker.C:
			utils.UncheckedError(conn.SetWriteDeadline(time.Now().Add(writeWait)))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			utils.UncheckedError(conn.SetWriteDeadline(time.Now().Add(writeWait)))
			utils.UncheckedError(conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			))
			return
		}
	}
}

// Send encodes and forwards one event. Delivery is best effort: when the
// link is down or the write buffer is full, the event is dropped and Send
// still returns nil. The only error is an unencodable event.
func (c *Client) Send(ev event.Event) error {
	data, err := protocol.Encode(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	send := c.send
	c.mu.Unlock()
	if send == nil {
		return nil
	}

	select {
	case send <- data:
	default:
		c.logger.Debug("send buffer full; dropping event")
	}
	return nil
}

func (c *Client) setState(next State) {
	c.mu.Lock()
	if c.state == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, listener := range listeners {
		listener(next)
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether events currently reach the wire.
func (c *Client) Connected() bool {
	return c.State() == Connected
}

// Stop tears down the connection and ends the retry loop, waiting for
// background work to finish. Afterwards the client reports Disconnected and
// Start returns ErrStopped. Stop is idempotent.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel := c.cancel
	conn := c.conn
	c.conn = nil
	c.send = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		utils.UncheckedErrorFunc(conn.Close)
	}
	c.activeBackgroundWorkers.Wait()
	c.setState(Disconnected)
}
