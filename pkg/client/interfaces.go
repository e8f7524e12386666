package client

import (
	"context"

	"github.com/voxhall/voxhall/pkg/gateway"
	"github.com/voxhall/voxhall/pkg/rest"
	"github.com/voxhall/voxhall/pkg/voice"
)

// GatewayTransport is the primary socket: the event stream connection.
// The real implementation is gateway.Conn; tests substitute MockGateway.
type GatewayTransport interface {
	Login(ctx context.Context, url, token string) error
	Disconnect() error
	Send(op int, data interface{}) error

	Events() <-chan gateway.Event
	StateChanges() <-chan gateway.StateUpdate

	// Done is closed when the transport fails internally; Err carries the
	// captured failure.
	Done() <-chan struct{}
	Err() error
}

// VoiceTransport is the secondary socket: the media control connection,
// connected reactively from a gateway event rather than by the connect
// sequence.
type VoiceTransport interface {
	Login(ctx context.Context, params voice.LoginParams) error
	Disconnect() error

	Speaking() <-chan voice.SpeakingUpdate
	StateChanges() <-chan gateway.StateUpdate
}

// RestClient is the request/response collaborator.
type RestClient interface {
	Login(ctx context.Context, email, password string) (string, error)
	Gateway(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, req rest.SendMessageRequest) (*rest.Message, error)
	AckMessage(ctx context.Context, channelID, messageID string) error
	SetToken(token string)
}

// StateStore persists small client-side bookkeeping (tokens, endpoint,
// read positions) across runs. The entity cache itself is never persisted;
// it is rebuilt from the resync event on every connect.
type StateStore interface {
	GetToken(account string) (string, error)
	SetToken(account, token string) error
	GetGatewayURL() (string, error)
	SetGatewayURL(url string) error
	GetReadState(channelID string) (string, error)
	UpdateReadState(channelID, messageID string) error
	Close() error
}
