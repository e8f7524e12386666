// Package gateway implements the primary transport: a long-lived websocket
// to the Voxhall gateway that authenticates, heartbeats, and delivers the
// dispatch stream as typed events.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned when an operation needs an open socket.
var ErrNotConnected = errors.New("gateway: not connected")

const (
	defaultReconnectDelay    = 1 * time.Second
	defaultMaxReconnectDelay = 30 * time.Second
	writeTimeout             = 10 * time.Second
)

type identifyProperties struct {
	OS      string `json:"$os"`
	Browser string `json:"$browser"`
	Device  string `json:"$device"`
}

type identifyPayload struct {
	Token      string             `json:"token"`
	Version    int                `json:"v"`
	Properties identifyProperties `json:"properties"`
}

// Conn is a client connection to the gateway. It can be logged in and
// disconnected repeatedly; the event and state channels persist across
// sessions.
type Conn struct {
	mu          sync.Mutex
	ws          *websocket.Conn
	url         string
	token       string
	active      bool // a login session exists (possibly mid-reconnect)
	connected   bool
	established bool // first READY of this login seen
	requested   bool // Disconnect() was called
	failErr     error

	writeMu sync.Mutex

	events      chan Event
	state       chan StateUpdate
	done        chan struct{}
	sessionDone chan struct{}

	seq           atomic.Int64
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64

	autoReconnect     bool
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration

	logger *log.Logger
	wg     sync.WaitGroup
}

// NewConn creates an unconnected gateway transport.
func NewConn() *Conn {
	return &Conn{
		events:            make(chan Event, 256),
		state:             make(chan StateUpdate, 16),
		done:              make(chan struct{}),
		autoReconnect:     true,
		reconnectDelay:    defaultReconnectDelay,
		maxReconnectDelay: defaultMaxReconnectDelay,
	}
}

// SetLogger sets a logger for debugging transport events.
func (c *Conn) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// DisableAutoReconnect disables mid-session reconnection on socket loss.
func (c *Conn) DisableAutoReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoReconnect = false
}

func (c *Conn) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Events returns the inbound dispatch stream. Events are delivered in
// arrival order; the channel is never closed.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// StateChanges returns the transport's connect/disconnect notifications.
func (c *Conn) StateChanges() <-chan StateUpdate {
	return c.state
}

// Done is closed when the transport fails before the session is
// established. Err reports the captured failure.
func (c *Conn) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err returns the error captured by an internal transport failure, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failErr
}

// BytesSent returns total bytes written to the socket.
func (c *Conn) BytesSent() uint64 { return c.bytesSent.Load() }

// BytesReceived returns total bytes read from the socket.
func (c *Conn) BytesReceived() uint64 { return c.bytesReceived.Load() }

// Login dials the gateway, identifies with the token, and starts the
// receive and heartbeat loops. The loops stop when ctx is cancelled or
// Disconnect is called. Login returns once the identify frame is on the
// wire; the connected notification follows asynchronously when the first
// READY arrives.
func (c *Conn) Login(ctx context.Context, url, token string) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return fmt.Errorf("gateway: already logged in")
	}
	c.url = url
	c.token = token
	c.requested = false
	c.established = false
	c.failErr = nil
	c.done = make(chan struct{})
	c.sessionDone = make(chan struct{})
	c.mu.Unlock()

	ws, err := c.dialAndIdentify(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.ws = ws
	c.active = true
	c.connected = true
	c.mu.Unlock()

	c.wg.Add(2)
	go c.readLoop(ctx, ws)
	go c.watchCancel(ctx, ws)

	return nil
}

func (c *Conn) dialAndIdentify(ctx context.Context) (*websocket.Conn, error) {
	c.logf("Dialing gateway %s", c.url)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway dial: %w", err)
	}

	identify := identifyPayload{
		Token:   c.token,
		Version: 3,
		Properties: identifyProperties{
			OS:      "linux",
			Browser: "voxhall-go",
			Device:  "voxhall-go",
		},
	}
	if err := c.writeEnvelopeTo(ws, &Envelope{Op: OpIdentify}, identify); err != nil {
		ws.Close()
		return nil, fmt.Errorf("gateway identify: %w", err)
	}
	return ws, nil
}

// watchCancel closes the socket when ctx is cancelled so the read loop
// unblocks promptly.
func (c *Conn) watchCancel(ctx context.Context, ws *websocket.Conn) {
	defer c.wg.Done()
	c.mu.Lock()
	sessionDone := c.sessionDone
	c.mu.Unlock()
	select {
	case <-sessionDone:
		return
	case <-ctx.Done():
	}
	c.mu.Lock()
	if c.active {
		c.requested = true
		c.active = false
		c.connected = false
		if c.ws != nil {
			c.ws.Close()
		}
	}
	c.mu.Unlock()
}

// Send writes one envelope with the given opcode to the gateway socket.
func (c *Conn) Send(op int, data interface{}) error {
	c.mu.Lock()
	ws := c.ws
	connected := c.connected
	c.mu.Unlock()
	if !connected || ws == nil {
		return ErrNotConnected
	}
	return c.writeEnvelopeTo(ws, &Envelope{Op: op}, data)
}

// Disconnect closes the socket and waits for the loops to finish. It is a
// no-op when not connected.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.logf("Disconnecting from gateway (requested)")
	c.requested = true
	c.active = false
	c.connected = false
	ws := c.ws
	sessionDone := c.sessionDone
	c.mu.Unlock()

	if sessionDone != nil {
		close(sessionDone)
	}

	if ws != nil {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		ws.Close()
	}
	c.wg.Wait()
	return nil
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) {
	defer c.wg.Done()

	heartbeatStop := make(chan struct{})
	heartbeatStarted := false
	defer func() {
		if heartbeatStarted {
			close(heartbeatStop)
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleReadFailure(ctx, err)
			return
		}
		c.bytesReceived.Add(uint64(len(data)))
		metricTraffic.WithLabelValues("received").Add(float64(len(data)))

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logf("Dropping undecodable frame: %v", err)
			continue
		}
		if env.Seq > 0 {
			c.seq.Store(int64(env.Seq))
		}
		if env.Op != OpDispatch {
			continue
		}

		if env.Type == EventReady {
			var ready struct {
				HeartbeatInterval int `json:"heartbeat_interval"`
			}
			if err := json.Unmarshal(env.Data, &ready); err == nil && ready.HeartbeatInterval > 0 && !heartbeatStarted {
				heartbeatStarted = true
				c.wg.Add(1)
				go c.heartbeatLoop(ws, time.Duration(ready.HeartbeatInterval)*time.Millisecond, heartbeatStop)
			}
			c.markEstablished()
		}

		c.logf("← RECV: %s (%d bytes)", env.Type, len(env.Data))

		select {
		case c.events <- Event{Type: env.Type, Data: env.Data}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conn) markEstablished() {
	c.mu.Lock()
	first := !c.established
	c.established = true
	c.mu.Unlock()
	if first {
		c.notifyState(StateUpdate{Connected: true})
	}
}

func (c *Conn) heartbeatLoop(ws *websocket.Conn, interval time.Duration, stop <-chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.writeEnvelopeTo(ws, &Envelope{Op: OpHeartbeat, Seq: int(c.seq.Load())}, nil); err != nil {
				c.logf("Heartbeat write failed: %v", err)
				// The read loop observes the broken socket and owns the
				// disconnect handling.
				ws.Close()
				return
			}
		}
	}
}

func (c *Conn) writeEnvelopeTo(ws *websocket.Conn, env *Envelope, data interface{}) error {
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		env.Data = raw
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	c.bytesSent.Add(uint64(len(payload)))
	metricTraffic.WithLabelValues("sent").Add(float64(len(payload)))
	return nil
}

func (c *Conn) handleReadFailure(ctx context.Context, err error) {
	c.mu.Lock()
	requested := c.requested
	established := c.established
	autoReconnect := c.autoReconnect
	c.connected = false
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.mu.Unlock()

	if requested || ctx.Err() != nil {
		c.notifyState(StateUpdate{Connected: false})
		return
	}

	c.logf("Gateway read failed: %v", err)
	c.notifyState(StateUpdate{Connected: false, WasUnexpected: true, Err: err})

	if !established || !autoReconnect {
		// Losing the socket before the session exists fails the login
		// attempt rather than triggering a silent retry.
		c.mu.Lock()
		c.active = false
		sessionDone := c.sessionDone
		c.mu.Unlock()
		c.fail(fmt.Errorf("gateway connection lost: %w", err))
		if sessionDone != nil {
			close(sessionDone)
		}
		return
	}

	c.wg.Add(1)
	go c.reconnectLoop(ctx)
}

// reconnectLoop re-dials a lost mid-session connection with exponential
// backoff until it succeeds or the owning scope is cancelled.
func (c *Conn) reconnectLoop(ctx context.Context) {
	defer c.wg.Done()

	c.mu.Lock()
	sessionDone := c.sessionDone
	c.mu.Unlock()

	delay := c.reconnectDelay
	attempt := 1

	for {
		select {
		case <-ctx.Done():
			c.logf("Reconnect loop cancelled")
			return
		case <-sessionDone:
			c.logf("Reconnect loop stopped (disconnect requested)")
			return
		case <-time.After(delay):
			c.logf("Reconnect attempt %d to %s", attempt, c.url)

			ws, err := c.dialAndIdentify(ctx)
			if err != nil {
				c.logf("Reconnect attempt %d failed: %v", attempt, err)
				delay *= 2
				if delay > c.maxReconnectDelay {
					delay = c.maxReconnectDelay
				}
				attempt++
				continue
			}

			c.mu.Lock()
			c.ws = ws
			c.connected = true
			c.established = false
			c.mu.Unlock()

			c.logf("Reconnected after %d attempts", attempt)
			c.wg.Add(1)
			go c.readLoop(ctx, ws)
			return
		}
	}
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return
	}
	c.failErr = err
	close(c.done)
}

func (c *Conn) notifyState(update StateUpdate) {
	select {
	case c.state <- update:
	default:
		c.logf("State channel full, dropping update")
	}
}
