package client

import (
	"context"
	"sync"

	"github.com/voxhall/voxhall/pkg/gateway"
	"github.com/voxhall/voxhall/pkg/voice"
)

// MockVoice is a test implementation of VoiceTransport.
type MockVoice struct {
	mu       sync.Mutex
	loginErr error
	speaking chan voice.SpeakingUpdate
	state    chan gateway.StateUpdate

	Logins          []voice.LoginParams
	DisconnectCalls int
}

// NewMockVoice creates a mock voice transport.
func NewMockVoice() *MockVoice {
	return &MockVoice{
		speaking: make(chan voice.SpeakingUpdate, 64),
		state:    make(chan gateway.StateUpdate, 16),
	}
}

// SetLoginErr makes the next Login call fail.
func (m *MockVoice) SetLoginErr(err error) {
	m.mu.Lock()
	m.loginErr = err
	m.mu.Unlock()
}

func (m *MockVoice) Login(ctx context.Context, params voice.LoginParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loginErr != nil {
		return m.loginErr
	}
	m.Logins = append(m.Logins, params)
	return nil
}

func (m *MockVoice) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DisconnectCalls++
	return nil
}

func (m *MockVoice) Speaking() <-chan voice.SpeakingUpdate {
	return m.speaking
}

func (m *MockVoice) StateChanges() <-chan gateway.StateUpdate {
	return m.state
}

// PushConnected emits the voice connected notification.
func (m *MockVoice) PushConnected() {
	m.state <- gateway.StateUpdate{Connected: true}
}

// PushDisconnected emits a voice disconnected notification.
func (m *MockVoice) PushDisconnected(unexpected bool, err error) {
	m.state <- gateway.StateUpdate{Connected: false, WasUnexpected: unexpected, Err: err}
}

// PushSpeaking emits a speaking update.
func (m *MockVoice) PushSpeaking(userID string, speaking bool) {
	m.speaking <- voice.SpeakingUpdate{UserID: userID, Speaking: speaking}
}

// LoginCount reports how many logins were performed.
func (m *MockVoice) LoginCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Logins)
}
