// Package client implements the Voxhall connection lifecycle engine: the
// state machine driving the gateway and voice sockets, the synchronizer
// that folds the event stream into the identity cache, and the outbound
// send pipeline.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxhall/voxhall/pkg/cache"
	"github.com/voxhall/voxhall/pkg/gateway"
	"github.com/voxhall/voxhall/pkg/rest"
	"github.com/voxhall/voxhall/pkg/voice"
)

// ConnectionState is the client's lifecycle phase. It is mutated only
// through atomic compare-and-swap transitions, never read-then-write.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// Usage and connect-time errors.
var (
	ErrMissingToken       = errors.New("client: token is empty")
	ErrMissingCredentials = errors.New("client: email or password is empty")
	ErrAlreadyConnecting  = errors.New("client: a connect attempt is already in progress")
	ErrNotConnected       = errors.New("client: not connected")
	ErrVoiceDisabled      = errors.New("client: voice is not enabled on this client")
	ErrConnectTimeout     = errors.New("client: connect timed out")
	ErrConnectCancelled   = errors.New("client: connect was cancelled")
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultQueueInterval  = 100 * time.Millisecond
	voiceRetryDelay       = 2 * time.Second
)

// Config tunes a Client.
type Config struct {
	// ConnectTimeout bounds the whole Connect call, teardown included.
	ConnectTimeout time.Duration
	// UseMessageQueue buffers outbound messages and drains them on
	// MessageQueueInterval; when false SendMessage delivers inline.
	UseMessageQueue      bool
	MessageQueueInterval time.Duration
	// EnableVoice allows the secondary media control socket.
	EnableVoice bool
	// TrackActivity stamps users and members with typing/presence times.
	TrackActivity bool
}

func (c *Config) applyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.MessageQueueInterval <= 0 {
		c.MessageQueueInterval = defaultQueueInterval
	}
}

// Client is a Voxhall session. One Client owns one identity cache and at
// most one live gateway connection at a time; Connect and Disconnect may be
// called from any goroutine.
type Client struct {
	config  Config
	gateway GatewayTransport
	voice   VoiceTransport
	rest    RestClient
	cache   *cache.Store

	*Notifier

	state atomic.Int32

	mu             sync.Mutex
	scopeCtx       context.Context
	scopeCancel    context.CancelFunc
	connectedCh    chan struct{}
	disconnectedCh chan struct{}
	disconnectErr  error
	wasUnexpected  bool
	currentUserID  string
	sessionID      string

	queueMu sync.Mutex
	queue   []*cache.Message

	voiceReq    chan voice.LoginParams
	voiceParams *voice.LoginParams // last handoff, for voice reconnect

	store  StateStore
	logger *log.Logger
}

// New creates a Client over explicit collaborators. Use NewDefault for the
// real transports.
func New(gw GatewayTransport, vc VoiceTransport, rc RestClient, config Config) *Client {
	config.applyDefaults()
	c := &Client{
		config:   config,
		gateway:  gw,
		voice:    vc,
		rest:     rc,
		cache:    cache.NewStore(),
		Notifier: NewNotifier(),
		voiceReq: make(chan voice.LoginParams, 4),
	}
	c.connectedCh = make(chan struct{})
	return c
}

// NewDefault creates a Client wired to the real gateway, voice, and REST
// implementations for the given API base URL.
func NewDefault(apiURL string, config Config) *Client {
	var vc VoiceTransport
	if config.EnableVoice {
		vc = voice.NewConn()
	}
	return New(gateway.NewConn(), vc, rest.NewClient(apiURL), config)
}

// SetLogger sets a logger for lifecycle and synchronizer debugging.
func (c *Client) SetLogger(logger *log.Logger) {
	c.logger = logger
	c.Notifier.setLogger(logger)
}

// SetStateStore attaches persistent bookkeeping (tokens, read positions).
// Optional; a nil store disables persistence.
func (c *Client) SetStateStore(store StateStore) {
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// State returns the current lifecycle phase.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Cache exposes the identity cache for reads. The synchronizer is the only
// writer.
func (c *Client) Cache() *cache.Store {
	return c.cache
}

// CurrentUser returns the logged-in user, or nil before READY.
func (c *Client) CurrentUser() *cache.User {
	c.mu.Lock()
	id := c.currentUserID
	c.mu.Unlock()
	if id == "" {
		return nil
	}
	return c.cache.User(id)
}

// SessionID returns the gateway session identifier, or "" before READY.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connect logs in with a session token. If the client is already connected
// (or mid-connect) it fully disconnects first. The whole attempt is bounded
// by Config.ConnectTimeout; on timeout the partial connection is torn down
// and ErrConnectTimeout surfaces.
func (c *Client) Connect(token string) error {
	if token == "" {
		return ErrMissingToken
	}

	switch c.State() {
	case StateConnected, StateConnecting, StateDisconnecting:
		// Disconnect waits out an in-flight teardown too, so a Connect
		// issued mid-teardown starts from Disconnected instead of
		// failing with ErrAlreadyConnecting.
		if err := c.Disconnect(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
	defer cancel()

	if err := c.connect(ctx, token); err != nil {
		if errors.Is(err, ErrAlreadyConnecting) {
			// Another goroutine owns the in-flight attempt; it is not
			// ours to tear down.
			return err
		}
		c.Disconnect()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrConnectTimeout
		}
		return err
	}
	return nil
}

// ConnectWithCredentials exchanges credentials for a token via the REST
// collaborator, then connects with it. The token is returned so the caller
// can persist it.
func (c *Client) ConnectWithCredentials(email, password string) (string, error) {
	if email == "" || password == "" {
		return "", ErrMissingCredentials
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
	defer cancel()
	token, err := c.rest.Login(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("credential login: %w", err)
	}

	if err := c.Connect(token); err != nil {
		return "", err
	}
	return token, nil
}

// connect runs the internal connect sequence. On success the run loop owns
// the session; on failure the caller is expected to Disconnect.
func (c *Client) connect(ctx context.Context, token string) error {
	scopeCtx, scopeCancel := context.WithCancel(context.Background())

	// The transition to Connecting and the publication of this attempt's
	// scope happen under the same lock acquisition. signalDisconnect takes
	// the lock for its swap, so a winner can never observe the Connecting
	// state paired with a previous attempt's scope.
	c.mu.Lock()
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		c.mu.Unlock()
		scopeCancel()
		return ErrAlreadyConnecting
	}
	c.scopeCtx = scopeCtx
	c.scopeCancel = scopeCancel
	c.connectedCh = make(chan struct{})
	c.disconnectedCh = make(chan struct{})
	c.disconnectErr = nil
	c.wasUnexpected = false
	c.voiceParams = nil
	connectedCh := c.connectedCh
	store := c.store
	c.mu.Unlock()

	metricConnects.Inc()
	c.logf("Connecting")

	// The supervisory run loop starts before anything can fail so every
	// path, including a failed login, converges on its cleanup.
	go c.runLoop(scopeCtx)

	c.rest.SetToken(token)
	gatewayURL, err := c.rest.Gateway(ctx)
	if err != nil {
		return fmt.Errorf("resolve gateway: %w", err)
	}
	if store != nil {
		if err := store.SetGatewayURL(gatewayURL); err != nil {
			c.logf("Persisting gateway URL failed: %v", err)
		}
	}

	if err := c.gateway.Login(scopeCtx, gatewayURL, token); err != nil {
		return err
	}

	go c.syncLoop(scopeCtx)
	go c.watchGateway(scopeCtx, connectedCh)
	if c.voice != nil {
		go c.voiceLoop(scopeCtx)
	}

	select {
	case <-connectedCh:
		return nil
	case <-c.gateway.Done():
		if err := c.gateway.Err(); err != nil {
			return err
		}
		return ErrConnectCancelled
	case <-scopeCtx.Done():
		c.mu.Lock()
		cause := c.disconnectErr
		c.mu.Unlock()
		if cause != nil {
			return cause
		}
		return ErrConnectCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect requests a clean shutdown and waits until the run loop has
// finished tearing everything down. Safe to call from multiple goroutines;
// all callers return only after the single teardown completes. A no-op when
// already disconnected.
func (c *Client) Disconnect() error {
	c.signalDisconnect(false, nil)
	c.waitDisconnected()
	return nil
}

// signalDisconnect performs the compare-and-swap transition into
// Disconnecting. Whichever caller wins the swap becomes the sole owner of
// teardown: it records the reason and cancels the scope. Losers do nothing.
// The swap runs under c.mu, the same lock connect publishes a fresh scope
// under, so the winner always cancels the scope of the attempt whose state
// it transitioned.
func (c *Client) signalDisconnect(unexpected bool, cause error) {
	c.mu.Lock()
	won := c.state.CompareAndSwap(int32(StateConnecting), int32(StateDisconnecting)) ||
		c.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnecting))
	if !won {
		// Already Disconnecting or Disconnected; the in-flight teardown
		// (if any) covers this request.
		c.mu.Unlock()
		return
	}
	c.disconnectErr = cause
	c.wasUnexpected = unexpected
	cancel := c.scopeCancel
	c.mu.Unlock()

	if unexpected {
		c.logf("Disconnect requested (unexpected): %v", cause)
	} else {
		c.logf("Disconnect requested")
	}
	metricDisconnects.WithLabelValues(boolLabel(unexpected)).Inc()

	if cancel != nil {
		cancel()
	}
}

func (c *Client) waitDisconnected() {
	c.mu.Lock()
	ch := c.disconnectedCh
	c.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

// runLoop supervises one connection attempt: it waits until the send
// pipeline exits or the scope is cancelled, funnels any pipeline failure
// into the unexpected-disconnect path, then performs the teardown every
// disconnect converges on.
func (c *Client) runLoop(ctx context.Context) {
	if c.config.UseMessageQueue {
		inner := make(chan error, 1)
		go func() { inner <- c.sendLoop(ctx) }()
		select {
		case err := <-inner:
			if err != nil {
				c.signalDisconnect(true, err)
			}
		case <-ctx.Done():
		}
	} else {
		<-ctx.Done()
	}

	// Idempotent: covers paths where the scope was cancelled externally
	// without a state transition (cannot normally happen, but harmless).
	c.signalDisconnect(false, nil)
	c.cleanup()
}

// cleanup tears down both transports, discards queued sends, empties the
// cache, and releases the fully-disconnected signal. Runs exactly once per
// connection attempt, always on the run loop goroutine.
func (c *Client) cleanup() {
	if err := c.gateway.Disconnect(); err != nil {
		c.logf("Gateway disconnect: %v", err)
	}
	if c.voice != nil {
		if err := c.voice.Disconnect(); err != nil {
			c.logf("Voice disconnect: %v", err)
		}
	}

	c.queueMu.Lock()
	dropped := len(c.queue)
	c.queue = nil
	c.queueMu.Unlock()
	if dropped > 0 {
		c.logf("Discarded %d queued outbound messages", dropped)
	}
	metricQueueDepth.Set(0)

	c.cache.Clear()

	c.mu.Lock()
	c.currentUserID = ""
	c.sessionID = ""
	c.voiceParams = nil
	cause := c.disconnectErr
	disconnectedCh := c.disconnectedCh
	c.connectedCh = make(chan struct{})
	c.mu.Unlock()

	c.state.CompareAndSwap(int32(StateDisconnecting), int32(StateDisconnected))
	c.logf("Disconnected")

	c.fireDisconnected(cause)

	if disconnectedCh != nil {
		close(disconnectedCh)
	}
}

// watchGateway consumes the primary transport's state notifications: the
// connected signal completes the connect sequence, and an internal
// transport failure becomes an unexpected disconnect.
func (c *Client) watchGateway(ctx context.Context, connectedCh chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.gateway.Done():
			c.signalDisconnect(true, c.gateway.Err())
			return
		case update := <-c.gateway.StateChanges():
			if update.Connected {
				if c.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected)) {
					close(connectedCh)
				}
				c.fireConnected()
			} else if update.WasUnexpected {
				// The transport reconnects on its own; the session
				// survives unless its Done fires.
				c.logf("Gateway dropped unexpectedly: %v", update.Err)
			}
		}
	}
}

// JoinVoice asks the service to move the current user into a voice channel.
// The media socket itself connects later, when the gateway assigns an
// endpoint.
func (c *Client) JoinVoice(serverID, channelID string) error {
	if c.voice == nil || !c.config.EnableVoice {
		return ErrVoiceDisabled
	}
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	return c.gateway.Send(gateway.OpVoiceState, map[string]interface{}{
		"guild_id":   serverID,
		"channel_id": channelID,
		"self_mute":  false,
		"self_deaf":  false,
	})
}

// voiceLoop owns the secondary socket: it consumes handoff requests posted
// by the synchronizer, relays speaking updates into the cache, and
// reconnects the voice socket after an unexpected drop.
func (c *Client) voiceLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case params := <-c.voiceReq:
			c.mu.Lock()
			c.voiceParams = &params
			c.mu.Unlock()
			if err := c.voice.Login(ctx, params); err != nil {
				c.logf("Voice login failed: %v", err)
			}
		case update := <-c.voice.StateChanges():
			if update.Connected {
				c.fireVoiceConnected()
				continue
			}
			c.fireVoiceDisconnected(update.Err)
			if update.WasUnexpected && ctx.Err() == nil {
				c.clearSpeakingStates()
				c.retryVoice(ctx)
			}
		case speaking := <-c.voice.Speaking():
			c.applySpeaking(speaking.UserID, speaking.Speaking)
		}
	}
}

// clearSpeakingStates drops every per-member speaking flag after the voice
// socket is lost, notifying observers of each change. The synchronizer
// writes the same flag, so each flip runs under the store lock.
func (c *Client) clearSpeakingStates() {
	for _, m := range c.cache.Members() {
		var cleared bool
		c.cache.Update(func() {
			if m.IsSpeaking {
				m.IsSpeaking = false
				cleared = true
			}
		})
		if cleared {
			c.fireUserIsSpeaking(m, false)
		}
	}
}

func (c *Client) retryVoice(ctx context.Context) {
	c.mu.Lock()
	params := c.voiceParams
	c.mu.Unlock()
	if params == nil {
		return
	}
	select {
	case <-ctx.Done():
		return
	case <-time.After(voiceRetryDelay):
	}
	c.logf("Reconnecting voice to %s", params.Endpoint)
	if err := c.voice.Login(ctx, *params); err != nil {
		c.logf("Voice reconnect failed: %v", err)
	}
}

func (c *Client) applySpeaking(userID string, speaking bool) {
	c.mu.Lock()
	params := c.voiceParams
	c.mu.Unlock()
	if params == nil {
		return
	}
	member := c.cache.Member(userID, params.ServerID)
	if member == nil {
		return
	}
	var changed bool
	c.cache.Update(func() {
		if member.IsSpeaking == speaking {
			return
		}
		member.IsSpeaking = speaking
		if speaking && c.config.TrackActivity {
			member.LastActivity = time.Now()
		}
		changed = true
	})
	if changed {
		c.fireUserIsSpeaking(member, speaking)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
