package cache

import "time"

// User is a person known to the session, keyed by their service-assigned ID.
// Users are global; per-server details live on Member.
type User struct {
	ID            string
	Name          string
	Discriminator string
	AvatarID      string
	Status        string
	GameID        *int
	LastActivity  time.Time
	IsPrivate     bool // known only through a private channel
}

// Server is a guild the current user belongs to.
type Server struct {
	ID           string
	Name         string
	OwnerID      string
	Region       string
	IconID       string
	AFKChannelID string
	AFKTimeout   int
}

// Channel is a text or voice channel. Private channels have no ServerID and
// carry the peer's user ID in RecipientID.
type Channel struct {
	ID          string
	ServerID    string
	Name        string
	Topic       string
	Type        string
	Position    int
	RecipientID string
	IsPrivate   bool
}

// Member is a user's membership in one server, keyed by (UserID, ServerID).
type Member struct {
	UserID       string
	ServerID     string
	JoinedAt     time.Time
	RoleIDs      []string
	Mute         bool
	Deaf         bool
	SelfMute     bool
	SelfDeaf     bool
	Suppress     bool
	SessionID    string
	VoiceChannel string
	IsSpeaking   bool
	LastActivity time.Time
}

// Role is a permission role, server-scoped like Member.
type Role struct {
	ID          string
	ServerID    string
	Name        string
	Permissions uint64
	Color       uint32
	Hoist       bool
	Position    int
}

// Message is a chat message. Before the server acknowledges an outbound
// message it lives in the cache under its client-generated Nonce; Queued and
// Failed describe the send pipeline's progress on it.
type Message struct {
	ID         string
	Nonce      string
	ChannelID  string
	AuthorID   string
	Text       string
	Timestamp  time.Time
	EditedAt   *time.Time
	MentionIDs []string
	IsTTS      bool
	Queued     bool
	Failed     bool
}
