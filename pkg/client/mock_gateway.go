package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/voxhall/voxhall/pkg/gateway"
)

// MockGateway is a test implementation of GatewayTransport. Tests drive it
// by pushing events and state updates; it records everything sent through
// it for verification.
type MockGateway struct {
	mu        sync.Mutex
	loggedIn  bool
	loginErr  error
	failErr   error
	done      chan struct{}
	events    chan gateway.Event
	state     chan gateway.StateUpdate
	LoginURLs []string
	Sent      []MockSentEnvelope

	// DisconnectCalls counts Disconnect invocations.
	DisconnectCalls int
}

// MockSentEnvelope records one outbound gateway envelope.
type MockSentEnvelope struct {
	Op   int
	Data interface{}
}

// NewMockGateway creates a mock gateway transport.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		done:   make(chan struct{}),
		events: make(chan gateway.Event, 100),
		state:  make(chan gateway.StateUpdate, 16),
	}
}

// SetLoginErr makes the next Login call fail.
func (m *MockGateway) SetLoginErr(err error) {
	m.mu.Lock()
	m.loginErr = err
	m.mu.Unlock()
}

// Login records the attempt and succeeds unless SetLoginErr was used.
func (m *MockGateway) Login(ctx context.Context, url, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loginErr != nil {
		return m.loginErr
	}
	m.loggedIn = true
	m.LoginURLs = append(m.LoginURLs, url)
	return nil
}

// Disconnect marks the session closed.
func (m *MockGateway) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loggedIn = false
	m.DisconnectCalls++
	return nil
}

// Send records the envelope.
func (m *MockGateway) Send(op int, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loggedIn {
		return gateway.ErrNotConnected
	}
	m.Sent = append(m.Sent, MockSentEnvelope{Op: op, Data: data})
	return nil
}

func (m *MockGateway) Events() <-chan gateway.Event {
	return m.events
}

func (m *MockGateway) StateChanges() <-chan gateway.StateUpdate {
	return m.state
}

func (m *MockGateway) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

func (m *MockGateway) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failErr
}

// LoggedIn reports whether a login is active.
func (m *MockGateway) LoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loggedIn
}

// PushConnected emits the transport's connected notification.
func (m *MockGateway) PushConnected() {
	m.state <- gateway.StateUpdate{Connected: true}
}

// PushDisconnected emits a disconnected notification.
func (m *MockGateway) PushDisconnected(unexpected bool, err error) {
	m.state <- gateway.StateUpdate{Connected: false, WasUnexpected: unexpected, Err: err}
}

// PushEvent delivers one inbound event with a JSON-marshalled payload.
func (m *MockGateway) PushEvent(eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	m.events <- gateway.Event{Type: eventType, Data: raw}
}

// PushRawEvent delivers one inbound event with a raw payload.
func (m *MockGateway) PushRawEvent(eventType string, data json.RawMessage) {
	m.events <- gateway.Event{Type: eventType, Data: data}
}

// Fail closes the internal-failure channel with the given error.
func (m *MockGateway) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return
	}
	m.failErr = err
	close(m.done)
}
