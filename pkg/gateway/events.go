package gateway

import "encoding/json"

// Gateway opcodes.
const (
	OpDispatch   = 0
	OpHeartbeat  = 1
	OpIdentify   = 2
	OpVoiceState = 4
	OpResume     = 6
)

// Dispatch event names delivered by the gateway stream.
const (
	EventReady             = "READY"
	EventResumed           = "RESUMED"
	EventGuildCreate       = "GUILD_CREATE"
	EventGuildUpdate       = "GUILD_UPDATE"
	EventGuildDelete       = "GUILD_DELETE"
	EventChannelCreate     = "CHANNEL_CREATE"
	EventChannelUpdate     = "CHANNEL_UPDATE"
	EventChannelDelete     = "CHANNEL_DELETE"
	EventMemberAdd         = "GUILD_MEMBER_ADD"
	EventMemberUpdate      = "GUILD_MEMBER_UPDATE"
	EventMemberRemove      = "GUILD_MEMBER_REMOVE"
	EventRoleCreate        = "GUILD_ROLE_CREATE"
	EventRoleUpdate        = "GUILD_ROLE_UPDATE"
	EventRoleDelete        = "GUILD_ROLE_DELETE"
	EventBanAdd            = "GUILD_BAN_ADD"
	EventBanRemove         = "GUILD_BAN_REMOVE"
	EventMessageCreate     = "MESSAGE_CREATE"
	EventMessageUpdate     = "MESSAGE_UPDATE"
	EventMessageDelete     = "MESSAGE_DELETE"
	EventMessageAck        = "MESSAGE_ACK"
	EventTypingStart       = "TYPING_START"
	EventPresenceUpdate    = "PRESENCE_UPDATE"
	EventUserUpdate        = "USER_UPDATE"
	EventVoiceStateUpdate  = "VOICE_STATE_UPDATE"
	EventVoiceServerUpdate = "VOICE_SERVER_UPDATE"
)

// Envelope is the wire frame every gateway message travels in.
type Envelope struct {
	Op   int             `json:"op"`
	Type string          `json:"t,omitempty"`
	Seq  int             `json:"s,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

// Event is one inbound dispatch: the event's type name and its still-opaque
// payload. Decoding the payload into a typed shape is the consumer's job.
type Event struct {
	Type string
	Data json.RawMessage
}

// StateUpdate reports a transport connect or disconnect. WasUnexpected and
// Err are meaningful only when Connected is false.
type StateUpdate struct {
	Connected     bool
	WasUnexpected bool
	Err           error
}
