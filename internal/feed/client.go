// Package feed keeps a websocket open to the backend push endpoint and
// republishes its frames on the bus.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/tradechat/internal/backend"
	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/metrics"
	"github.com/matheus3301/tradechat/internal/status"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a control frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next frame or pong from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 1 << 20
)

// Options configures a Client.
type Options struct {
	URL        string
	API        *backend.Client // supplies the session cookie for same-origin feeds
	Bus        *bus.Bus
	Machine    *status.Machine
	Logger     *zap.Logger
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Client is the push socket reader.
type Client struct {
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
	backoff backoff
}

// New validates opts and builds a client. It does not connect.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("feed url %q: scheme must be ws or wss", opts.URL)
	}

	header := http.Header{}
	if opts.API != nil && opts.API.SameOrigin(u) {
		var parts []string
		for _, c := range opts.API.Cookies() {
			parts = append(parts, c.Name+"="+c.Value)
		}
		if len(parts) > 0 {
			header.Set("Cookie", strings.Join(parts, "; "))
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	machine := opts.Machine
	if machine == nil {
		machine = status.NewMachine(opts.Bus)
	}

	return &Client{
		url:     u.String(),
		header:  header,
		dialer:  &websocket.Dialer{HandshakeTimeout: 15 * time.Second, Proxy: http.ProxyFromEnvironment},
		bus:     opts.Bus,
		machine: machine,
		logger:  logger,
		backoff: newBackoff(opts.MinBackoff, opts.MaxBackoff),
	}, nil
}

// Machine returns the connection state machine.
func (c *Client) Machine() *status.Machine {
	return c.machine
}

// Run connects and reads frames until ctx is cancelled, reconnecting with
// capped exponential backoff. It returns nil on cancellation.
func (c *Client) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		c.transition(status.Connecting, "")

		conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if ctx.Err() != nil {
				c.transition(status.Offline, "stopped")
				return nil
			}
			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				c.logger.Warn("push feed rejected session", zap.Int("status", resp.StatusCode))
				c.transition(status.AuthRequired, resp.Status)
			} else {
				c.logger.Warn("push feed dial failed", zap.Error(err), zap.Int("attempt", attempt))
				c.transition(status.Reconnecting, err.Error())
			}
			if !c.wait(ctx, attempt) {
				c.transition(status.Offline, "stopped")
				return nil
			}
			metrics.FeedReconnects.Inc()
			continue
		}

		attempt = -1
		c.transition(status.Online, "")
		c.logger.Info("push feed connected", zap.String("url", c.url))

		err = c.read(ctx, conn)
		if ctx.Err() != nil {
			c.transition(status.Offline, "stopped")
			return nil
		}
		c.logger.Warn("push feed dropped", zap.Error(err))
		c.transition(status.Reconnecting, errString(err))
		if !c.wait(ctx, 0) {
			c.transition(status.Offline, "stopped")
			return nil
		}
		metrics.FeedReconnects.Inc()
	}
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				_ = conn.Close()
				return
			case <-done:
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	evt, err := Decode(data)
	if err != nil {
		metrics.FeedDecodeErrors.Inc()
		if errors.Is(err, ErrUnknownFrame) {
			c.logger.Debug("ignoring push frame", zap.Error(err))
		} else {
			c.logger.Warn("dropping malformed push frame", zap.Error(err))
		}
		return
	}
	metrics.FeedFrames.WithLabelValues(strings.TrimPrefix(evt.Kind, "push.")).Inc()
	if c.bus != nil {
		c.bus.Publish(evt)
	}
}

func (c *Client) transition(to status.State, reason string) {
	if c.machine.Current() == to {
		return
	}
	if err := c.machine.TransitionWith(to, reason); err != nil {
		c.logger.Debug("feed state transition skipped", zap.Error(err))
	}
}

func (c *Client) wait(ctx context.Context, attempt int) bool {
	t := time.NewTimer(c.backoff.delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// backoff doubles from min up to max.
type backoff struct {
	min, max time.Duration
}

func newBackoff(lo, hi time.Duration) backoff {
	if lo <= 0 {
		lo = time.Second
	}
	if hi < lo {
		hi = 30 * time.Second
		if hi < lo {
			hi = lo
		}
	}
	return backoff{min: lo, max: hi}
}

func (b backoff) delay(attempt int) time.Duration {
	d := b.min
	for i := 0; i < attempt && d < b.max; i++ {
		d *= 2
	}
	return min(d, b.max)
}
