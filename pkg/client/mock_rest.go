package client

import (
	"context"
	"strconv"
	"sync"

	"github.com/voxhall/voxhall/pkg/rest"
)

// MockRest is a test implementation of RestClient. Outcomes are scripted
// per call; every request is recorded.
type MockRest struct {
	mu sync.Mutex

	Token      string
	GatewayURL string
	gatewayErr error
	loginToken string
	loginErr   error

	// sendOutcomes is consumed front-to-back by SendMessage; when empty,
	// sends succeed with a generated id.
	sendOutcomes []sendOutcome
	nextID       int

	SendRequests []rest.SendMessageRequest
	AckRequests  [][2]string
}

type sendOutcome struct {
	resp *rest.Message
	err  error
}

// NewMockRest creates a mock REST collaborator with a default gateway URL.
func NewMockRest() *MockRest {
	return &MockRest{
		GatewayURL: "wss://gateway.test",
		loginToken: "token-from-login",
	}
}

// SetGatewayErr makes Gateway fail.
func (m *MockRest) SetGatewayErr(err error) {
	m.mu.Lock()
	m.gatewayErr = err
	m.mu.Unlock()
}

// SetLoginResult scripts the credential login outcome.
func (m *MockRest) SetLoginResult(token string, err error) {
	m.mu.Lock()
	m.loginToken = token
	m.loginErr = err
	m.mu.Unlock()
}

// QueueSendSuccess scripts one successful send returning the given id.
func (m *MockRest) QueueSendSuccess(id string) {
	m.mu.Lock()
	m.sendOutcomes = append(m.sendOutcomes, sendOutcome{resp: &rest.Message{ID: id}})
	m.mu.Unlock()
}

// QueueSendErr scripts one failing send. Pass a *rest.StatusError for a
// service rejection, anything else for a transport failure.
func (m *MockRest) QueueSendErr(err error) {
	m.mu.Lock()
	m.sendOutcomes = append(m.sendOutcomes, sendOutcome{err: err})
	m.mu.Unlock()
}

func (m *MockRest) Login(ctx context.Context, email, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loginErr != nil {
		return "", m.loginErr
	}
	return m.loginToken, nil
}

func (m *MockRest) Gateway(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gatewayErr != nil {
		return "", m.gatewayErr
	}
	return m.GatewayURL, nil
}

func (m *MockRest) SendMessage(ctx context.Context, req rest.SendMessageRequest) (*rest.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendRequests = append(m.SendRequests, req)
	if len(m.sendOutcomes) > 0 {
		outcome := m.sendOutcomes[0]
		m.sendOutcomes = m.sendOutcomes[1:]
		if outcome.err != nil {
			return nil, outcome.err
		}
		resp := *outcome.resp
		resp.ChannelID = req.ChannelID
		resp.Content = req.Content
		resp.Nonce = req.Nonce
		return &resp, nil
	}
	m.nextID++
	return &rest.Message{
		ID:        "msg-" + strconv.Itoa(m.nextID),
		ChannelID: req.ChannelID,
		Content:   req.Content,
		Nonce:     req.Nonce,
	}, nil
}

func (m *MockRest) AckMessage(ctx context.Context, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AckRequests = append(m.AckRequests, [2]string{channelID, messageID})
	return nil
}

func (m *MockRest) SetToken(token string) {
	m.mu.Lock()
	m.Token = token
	m.mu.Unlock()
}
