// Package channel implements the duplex message channel to the remote
// worker gateway over a websocket. Delivery is at-most-once and unordered
// across kinds; the orchestration core is built to tolerate that.
package channel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/sendfleet/campaignsync/internal/domain/model"
	apperrors "github.com/sendfleet/campaignsync/internal/errors"
)

// Hooks are the lifecycle and event callbacks invoked by the client. All
// callbacks run on the client's read goroutine, one at a time, so handlers
// never see two events interleaved.
type Hooks struct {
	OnConnect      func(ctx context.Context)
	OnDisconnect   func(ctx context.Context, reason string)
	OnConnectError func(ctx context.Context, err error)
	OnEnvelope     func(ctx context.Context, env model.Envelope)
}

// Options configures the channel client.
type Options struct {
	// URL is the websocket endpoint of the worker gateway.
	URL    string
	Logger *slog.Logger

	// TokenSource, when set, attaches a bearer token to the dial request.
	TokenSource oauth2.TokenSource

	// DialTimeout bounds a single dial attempt. Defaults to 10s.
	DialTimeout time.Duration
	// ReconnectMin/Max bound the exponential backoff between attempts.
	// Defaults: 1s / 30s.
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	Hooks Hooks
}

// Client maintains one websocket connection to the gateway, redialing with
// backoff until its context is canceled. Emit is safe to call from any
// goroutine and fails fast while disconnected.
type Client struct {
	url    string
	logger *slog.Logger
	tokens oauth2.TokenSource

	dialTimeout  time.Duration
	reconnectMin time.Duration
	reconnectMax time.Duration
	hooks        Hooks

	mu   sync.RWMutex
	conn *websocket.Conn
}

// New creates a channel client. Run must be called to start connecting.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("channel URL is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		url:          opts.URL,
		logger:       logger,
		tokens:       opts.TokenSource,
		dialTimeout:  opts.DialTimeout,
		reconnectMin: opts.ReconnectMin,
		reconnectMax: opts.ReconnectMax,
		hooks:        opts.Hooks,
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = 10 * time.Second
	}
	if c.reconnectMin <= 0 {
		c.reconnectMin = time.Second
	}
	if c.reconnectMax < c.reconnectMin {
		c.reconnectMax = 30 * time.Second
	}
	return c, nil
}

// Bind installs the hooks after construction. The orchestration layer is
// built around the client, so hooks arrive once the handlers exist. Bind
// must be called before Run.
func (c *Client) Bind(hooks Hooks) {
	c.hooks = hooks
}

// Connected reports whether a live connection is established.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Emit sends one envelope, fire-and-forget. It returns a transport error
// when the channel is disconnected; there is no queueing or retry.
func (c *Client) Emit(ctx context.Context, env model.Envelope) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return apperrors.Transport("channel is not connected")
	}
	if err := wsjson.Write(ctx, conn, env); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTransport, "write envelope")
	}
	return nil
}

// Run connects and reads until ctx is canceled, redialing with exponential
// backoff after every drop. It returns ctx.Err() on shutdown.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.reconnectMin
	for {
		err := c.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if errors.Is(err, errDialFailed) {
			backoff = min(backoff*2, c.reconnectMax)
		} else {
			// We held a connection; start the backoff ladder over.
			backoff = c.reconnectMin
		}
		c.logger.InfoContext(ctx, "reconnecting", "backoff", backoff.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

var errDialFailed = errors.New("dial failed")

func (c *Client) connectAndRead(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		if c.hooks.OnConnectError != nil {
			c.hooks.OnConnectError(ctx, err)
		}
		return errors.Join(errDialFailed, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.InfoContext(ctx, "channel connected", "url", c.url)
	if c.hooks.OnConnect != nil {
		c.hooks.OnConnect(ctx)
	}

	readErr := c.readLoop(ctx, conn)

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "closing")
	if c.hooks.OnDisconnect != nil {
		c.hooks.OnDisconnect(ctx, disconnectReason(readErr))
	}
	return readErr
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	opts := &websocket.DialOptions{}
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeTransport, "fetch gateway token")
		}
		header := http.Header{}
		tok.SetAuthHeader(&http.Request{Header: header})
		opts.HTTPHeader = header
	}

	conn, _, err := websocket.Dial(dialCtx, c.url, opts)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeTransport, "dial %s", c.url)
	}
	// Snapshots for large campaigns exceed the default 32KB read limit.
	conn.SetReadLimit(16 * 1024 * 1024)
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var env model.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return err
		}
		if err := env.Validate(); err != nil {
			c.logger.WarnContext(ctx, "invalid envelope dropped", "error", err)
			continue
		}
		if c.hooks.OnEnvelope != nil {
			c.hooks.OnEnvelope(ctx, env)
		}
	}
}

func disconnectReason(err error) string {
	if err == nil {
		return "closed"
	}
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Reason
	}
	return err.Error()
}
