package gateway

// Typed payload shapes for each dispatch event. Field sets track what the
// Voxhall gateway actually sends; unknown fields are ignored by the JSON
// decoder.

// UserFields appears embedded in many payloads.
type UserFields struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

// RoleFields describes one role inside a guild or role event.
type RoleFields struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Permissions uint64 `json:"permissions"`
	Color       uint32 `json:"color"`
	Hoist       bool   `json:"hoist"`
	Position    int    `json:"position"`
}

// ChannelFields describes one channel.
type ChannelFields struct {
	ID        string      `json:"id"`
	GuildID   string      `json:"guild_id"`
	Name      string      `json:"name"`
	Topic     string      `json:"topic"`
	Type      string      `json:"type"`
	Position  int         `json:"position"`
	IsPrivate bool        `json:"is_private"`
	Recipient *UserFields `json:"recipient"`
}

// MemberFields describes one guild member.
type MemberFields struct {
	User     UserFields `json:"user"`
	GuildID  string     `json:"guild_id"`
	JoinedAt string     `json:"joined_at"`
	Roles    []string   `json:"roles"`
	Mute     bool       `json:"mute"`
	Deaf     bool       `json:"deaf"`
}

// GuildFields describes one guild, including the bulk member/channel/role
// lists sent on READY and GUILD_CREATE.
type GuildFields struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	OwnerID      string            `json:"owner_id"`
	Region       string            `json:"region"`
	Icon         string            `json:"icon"`
	AFKChannelID string            `json:"afk_channel_id"`
	AFKTimeout   int               `json:"afk_timeout"`
	Roles        []RoleFields      `json:"roles"`
	Members      []MemberFields    `json:"members"`
	Channels     []ChannelFields   `json:"channels"`
	VoiceStates  []VoiceStateEvent `json:"voice_states"`
	Unavailable  bool              `json:"unavailable"`
}

// ReadyEvent is the full-resync payload, the first dispatch after identify.
type ReadyEvent struct {
	SessionID         string          `json:"session_id"`
	HeartbeatInterval int             `json:"heartbeat_interval"`
	User              UserFields      `json:"user"`
	Guilds            []GuildFields   `json:"guilds"`
	PrivateChannels   []ChannelFields `json:"private_channels"`
}

// GuildDeleteEvent carries only the guild's identity.
type GuildDeleteEvent struct {
	ID          string `json:"id"`
	Unavailable bool   `json:"unavailable"`
}

// MemberRemoveEvent identifies the departing member.
type MemberRemoveEvent struct {
	User    UserFields `json:"user"`
	GuildID string     `json:"guild_id"`
}

// RoleCreateEvent covers GUILD_ROLE_CREATE and GUILD_ROLE_UPDATE.
type RoleCreateEvent struct {
	GuildID string     `json:"guild_id"`
	Role    RoleFields `json:"role"`
}

// RoleDeleteEvent identifies the removed role.
type RoleDeleteEvent struct {
	GuildID string `json:"guild_id"`
	RoleID  string `json:"role_id"`
}

// BanEvent covers GUILD_BAN_ADD and GUILD_BAN_REMOVE.
type BanEvent struct {
	User    UserFields `json:"user"`
	GuildID string     `json:"guild_id"`
}

// MessageEvent covers MESSAGE_CREATE and MESSAGE_UPDATE.
type MessageEvent struct {
	ID              string       `json:"id"`
	ChannelID       string       `json:"channel_id"`
	Author          *UserFields  `json:"author"`
	Content         string       `json:"content"`
	Timestamp       string       `json:"timestamp"`
	EditedTimestamp string       `json:"edited_timestamp"`
	Nonce           string       `json:"nonce"`
	TTS             bool         `json:"tts"`
	Mentions        []UserFields `json:"mentions"`
}

// MessageDeleteEvent identifies the removed message.
type MessageDeleteEvent struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// MessageAckEvent reports a message read on another device.
type MessageAckEvent struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
}

// TypingStartEvent reports typing activity in a channel.
type TypingStartEvent struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	Timestamp int64  `json:"timestamp"`
}

// PresenceUpdateEvent reports a user's presence in a guild.
type PresenceUpdateEvent struct {
	User    UserFields `json:"user"`
	GuildID string     `json:"guild_id"`
	Status  string     `json:"status"`
	GameID  *int       `json:"game_id"`
	Roles   []string   `json:"roles"`
}

// VoiceStateEvent reports a member's voice channel state.
type VoiceStateEvent struct {
	UserID    string `json:"user_id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	SessionID string `json:"session_id"`
	Mute      bool   `json:"mute"`
	Deaf      bool   `json:"deaf"`
	SelfMute  bool   `json:"self_mute"`
	SelfDeaf  bool   `json:"self_deaf"`
	Suppress  bool   `json:"suppress"`
}

// VoiceServerUpdateEvent assigns the media control endpoint for a guild.
type VoiceServerUpdateEvent struct {
	GuildID  string `json:"guild_id"`
	Endpoint string `json:"endpoint"`
	Token    string `json:"token"`
}
