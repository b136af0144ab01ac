package firehose

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skywatch-app/skywatch-server/internal/errors"
)

// Connection state machine.
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateOpen
	stateClosing
)

// Reconnect backoff: min(base * 2^attempts, cap).
const (
	backoffBase = time.Second
	backoffCap  = 60 * time.Second
)

// Keepalive settings for the websocket.
const (
	pingInterval = 30 * time.Second
	readTimeout  = 70 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler receives every decoded label-carrying message. The connector
// commits the frame's cursor only after the handler returns nil, so a crash
// or failure mid-frame replays the whole frame rather than skipping events.
type Handler func(msg *Message) error

// CursorStore persists the last durably-processed stream position.
type CursorStore interface {
	Load() (seq int64, ok bool, err error)
	Save(seq int64) error
}

// Config holds connector settings.
type Config struct {
	// Endpoint is the stream URL, e.g.
	// wss://labeler.example.com/xrpc/com.atproto.label.subscribeLabels.
	Endpoint string
	// Username/Password are an optional credential pair sent as basic auth.
	Username string
	Password string
}

// Connector owns the long-lived stream connection. Start establishes it
// (replaying from the stored cursor when one exists) and keeps it alive
// through exponential-backoff reconnects; Stop terminates it cleanly and
// suppresses further reconnection.
type Connector struct {
	cfg     Config
	handler Handler
	cursors CursorStore
	logger  *slog.Logger
	dialer  *websocket.Dialer

	mu       sync.Mutex
	state    connState
	conn     *websocket.Conn
	attempts int
	stopped  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a connector. The handler and cursor store are required.
func New(cfg Config, cursors CursorStore, handler Handler, logger *slog.Logger) (*Connector, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("stream endpoint cannot be empty")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid stream endpoint: %w", err)
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if cursors == nil {
		return nil, fmt.Errorf("cursor store cannot be nil")
	}

	return &Connector{
		cfg:     cfg,
		handler: handler,
		cursors: cursors,
		logger:  logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
		done: make(chan struct{}),
	}, nil
}

// Start launches the connection loop. It returns immediately; connection
// failures are handled inside the loop with backoff.
func (c *Connector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return fmt.Errorf("connector already stopped")
	}
	if c.state != stateDisconnected {
		return fmt.Errorf("connector already started")
	}
	c.state = stateConnecting

	c.wg.Add(1)
	go c.run()
	return nil
}

// Stop terminates the connection and suppresses reconnection. In-flight
// frame handling is allowed to finish; Stop blocks until the loop exits.
func (c *Connector) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	c.stopped = true
	c.state = stateClosing
	close(c.done)
	if c.conn != nil {
		// Unblocks the read loop.
		c.conn.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	c.state = stateDisconnected
	c.mu.Unlock()
}

// run is the serialized connect/read/reconnect loop. Reconnect attempts
// never overlap.
func (c *Connector) run() {
	defer c.wg.Done()

	for {
		if c.isStopping() {
			return
		}

		conn, err := c.dial()
		if err != nil {
			c.logger.Warn("stream dial failed", "error", err)
			if !c.sleepBackoff() {
				return
			}
			continue
		}

		c.readLoop(conn)

		if c.isStopping() {
			return
		}
		if !c.sleepBackoff() {
			return
		}
	}
}

// dial opens one connection, replaying from the stored cursor when present.
func (c *Connector) dial() (*websocket.Conn, error) {
	c.setState(stateConnecting)

	endpoint := c.cfg.Endpoint
	if seq, ok, err := c.cursors.Load(); err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	} else if ok {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("cursor", strconv.FormatInt(seq, 10))
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	header := http.Header{}
	if c.cfg.Username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(c.cfg.Username + ":" + c.cfg.Password))
		header.Set("Authorization", "Basic "+cred)
	}

	conn, _, err := c.dialer.Dial(endpoint, header)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		conn.Close()
		return nil, fmt.Errorf("stopped during dial")
	}
	c.conn = conn
	c.state = stateOpen
	c.attempts = 0 // reset on successful open
	c.mu.Unlock()

	c.logger.Info("stream connected",
		"session", uuid.NewString(),
		"endpoint", c.cfg.Endpoint,
	)
	return conn, nil
}

// readLoop reads frames until the connection drops or Stop is called.
func (c *Connector) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		if !c.stopped {
			c.state = stateDisconnected
		}
		c.mu.Unlock()
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	// Keepalive pings; the remote answers with pongs that extend the
	// read deadline.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			case <-pingDone:
				return
			case <-c.done:
				return
			}
		}
	}()

	for {
		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			if !c.isStopping() {
				c.logger.Warn("stream read failed", "error", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		msg, err := DecodeFrame(frame)
		if err != nil {
			var serr *StreamError
			if errors.As(err, &serr) {
				// Terminal frame from the remote; reconnect.
				c.logger.Error("stream reported error", "name", serr.Name, "message", serr.Message)
				return
			}
			// A frame that fails to parse is dropped, not fatal.
			c.logger.Warn("dropping undecodable frame", "error", err)
			continue
		}

		if len(msg.Labels) == 0 && !msg.HasSeq {
			continue
		}

		if err := c.handler(msg); err != nil {
			// The cursor stays uncommitted. Drop the connection
			// so the redial replays this frame from the committed
			// position; reading on would let a later frame commit
			// a cursor past the events we just failed to store.
			c.logger.Error("frame handling failed, replaying from last cursor",
				"seq", msg.Seq,
				"error", err,
			)
			return
		}

		if msg.HasSeq {
			if err := c.cursors.Save(msg.Seq); err != nil {
				c.logger.Error("cursor save failed", "seq", msg.Seq, "error", err)
			}
		}
	}
}

// sleepBackoff waits the current backoff delay. Returns false when Stop was
// called during the wait.
func (c *Connector) sleepBackoff() bool {
	c.mu.Lock()
	attempts := c.attempts
	c.attempts++
	c.mu.Unlock()

	delay := backoffBase << attempts
	if delay > backoffCap || delay <= 0 {
		delay = backoffCap
	}

	c.logger.Info("reconnecting to stream", "delay", delay, "attempt", attempts+1)

	select {
	case <-time.After(delay):
		return true
	case <-c.done:
		return false
	}
}

func (c *Connector) isStopping() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Connector) setState(s connState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
