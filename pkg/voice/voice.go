// Package voice implements the secondary transport: the control socket for
// a server's real-time-media endpoint. Only signaling lives here; the media
// path itself is out of scope for this client.
package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxhall/voxhall/pkg/gateway"
)

// Voice control opcodes.
const (
	opIdentify  = 0
	opReady     = 2
	opHeartbeat = 3
	opSpeaking  = 5
)

const writeTimeout = 10 * time.Second

// LoginParams are supplied reactively, from the gateway's media endpoint
// assignment event plus the session the primary socket established.
type LoginParams struct {
	Endpoint  string
	ServerID  string
	UserID    string
	SessionID string
	Token     string
}

// SpeakingUpdate reports a user's transmit state on the media channel.
type SpeakingUpdate struct {
	UserID   string `json:"user_id"`
	Speaking bool   `json:"speaking"`
}

type envelope struct {
	Op   int             `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
}

// Conn is a client connection to one media control endpoint.
type Conn struct {
	mu        sync.Mutex
	ws        *websocket.Conn
	active    bool
	requested bool

	writeMu sync.Mutex

	speaking chan SpeakingUpdate
	state    chan gateway.StateUpdate

	logger *log.Logger
	wg     sync.WaitGroup
}

// NewConn creates an unconnected voice transport.
func NewConn() *Conn {
	return &Conn{
		speaking: make(chan SpeakingUpdate, 64),
		state:    make(chan gateway.StateUpdate, 16),
	}
}

// SetLogger sets a logger for debugging voice transport events.
func (c *Conn) SetLogger(logger *log.Logger) {
	c.logger = logger
}

func (c *Conn) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Speaking returns the per-user transmit notifications.
func (c *Conn) Speaking() <-chan SpeakingUpdate {
	return c.speaking
}

// StateChanges returns the transport's connect/disconnect notifications.
func (c *Conn) StateChanges() <-chan gateway.StateUpdate {
	return c.state
}

// Login dials the media control endpoint and identifies with the
// session handed over from the primary socket.
func (c *Conn) Login(ctx context.Context, params LoginParams) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return fmt.Errorf("voice: already connected")
	}
	c.mu.Unlock()

	url := params.Endpoint
	if !strings.Contains(url, "://") {
		url = "wss://" + url
	}
	c.logf("Dialing voice endpoint %s for server %s", url, params.ServerID)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("voice dial: %w", err)
	}

	identify := map[string]string{
		"server_id":  params.ServerID,
		"user_id":    params.UserID,
		"session_id": params.SessionID,
		"token":      params.Token,
	}
	if err := c.writeEnvelope(ws, opIdentify, identify); err != nil {
		ws.Close()
		return fmt.Errorf("voice identify: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.active = true
	c.requested = false
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop(ctx, ws)

	return nil
}

// Disconnect closes the control socket. No-op when not connected.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.logf("Disconnecting voice (requested)")
	c.requested = true
	c.active = false
	ws := c.ws
	c.mu.Unlock()

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

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-stopWatch:
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleReadFailure(ctx, err)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logf("Dropping undecodable voice frame: %v", err)
			continue
		}

		switch env.Op {
		case opReady:
			var ready struct {
				HeartbeatInterval int `json:"heartbeat_interval"`
			}
			if err := json.Unmarshal(env.Data, &ready); err == nil && ready.HeartbeatInterval > 0 && !heartbeatStarted {
				heartbeatStarted = true
				c.wg.Add(1)
				go c.heartbeatLoop(ws, time.Duration(ready.HeartbeatInterval)*time.Millisecond, heartbeatStop)
			}
			c.notifyState(gateway.StateUpdate{Connected: true})
		case opSpeaking:
			var update SpeakingUpdate
			if err := json.Unmarshal(env.Data, &update); err != nil {
				c.logf("Dropping undecodable speaking update: %v", err)
				continue
			}
			select {
			case c.speaking <- update:
			case <-ctx.Done():
				return
			}
		}
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
			payload := time.Now().UnixMilli()
			if err := c.writeEnvelope(ws, opHeartbeat, payload); err != nil {
				c.logf("Voice heartbeat write failed: %v", err)
				ws.Close()
				return
			}
		}
	}
}

func (c *Conn) writeEnvelope(ws *websocket.Conn, op int, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Op: op, Data: raw})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Conn) handleReadFailure(ctx context.Context, err error) {
	c.mu.Lock()
	requested := c.requested
	c.active = false
	c.connectedTeardown()
	c.mu.Unlock()

	if requested || ctx.Err() != nil {
		c.notifyState(gateway.StateUpdate{Connected: false})
		return
	}
	c.logf("Voice read failed: %v", err)
	c.notifyState(gateway.StateUpdate{Connected: false, WasUnexpected: true, Err: err})
}

func (c *Conn) connectedTeardown() {
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
}

func (c *Conn) notifyState(update gateway.StateUpdate) {
	select {
	case c.state <- update:
	default:
		c.logf("Voice state channel full, dropping update")
	}
}
