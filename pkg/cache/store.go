// Package cache holds the volatile in-memory mirror of the entities the
// gateway stream describes. The whole store is rebuilt from the initial
// resync event after every connect; nothing here survives a disconnect.
package cache

import "sync"

// MemberKey identifies a server-scoped member record.
type MemberKey struct {
	UserID   string
	ServerID string
}

// RoleKey identifies a server-scoped role record.
type RoleKey struct {
	ID       string
	ServerID string
}

// Store is the identity cache for all six entity kinds. One mutex covers
// every container so get-or-create races between the event synchronizer and
// concurrent readers resolve without duplicate entries.
type Store struct {
	mu       sync.Mutex
	users    map[string]*User
	servers  map[string]*Server
	channels map[string]*Channel
	messages map[string]*Message
	members  map[MemberKey]*Member
	roles    map[RoleKey]*Role
}

// NewStore creates an empty identity cache.
func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.users = make(map[string]*User)
	s.servers = make(map[string]*Server)
	s.channels = make(map[string]*Channel)
	s.messages = make(map[string]*Message)
	s.members = make(map[MemberKey]*Member)
	s.roles = make(map[RoleKey]*Role)
}

// Clear empties every container.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Update runs fn while holding the store lock. Entity field writes that can
// race between goroutines go through here so every cache mutation shares
// the one mutual-exclusion domain. fn must not call back into the store.
func (s *Store) Update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// User returns the user with the given ID, or nil.
func (s *Store) User(id string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

// GetOrAddUser returns the user with the given ID, creating it on first
// reference.
func (s *Store) GetOrAddUser(id string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u
	}
	u := &User{ID: id}
	s.users[id] = u
	return u
}

// RemoveUser removes and returns the user, or nil if absent.
func (s *Store) RemoveUser(id string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	delete(s.users, id)
	return u
}

// Server returns the server with the given ID, or nil.
func (s *Store) Server(id string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.servers[id]
}

// GetOrAddServer returns the server with the given ID, creating it on first
// reference.
func (s *Store) GetOrAddServer(id string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.servers[id]; ok {
		return g
	}
	g := &Server{ID: id}
	s.servers[id] = g
	return g
}

// RemoveServer removes the server and every member, role and channel scoped
// to it, all under one lock acquisition. Returns the server, or nil if it
// was never cached.
func (s *Store) RemoveServer(id string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.servers[id]
	if g == nil {
		return nil
	}
	delete(s.servers, id)
	for k := range s.members {
		if k.ServerID == id {
			delete(s.members, k)
		}
	}
	for k := range s.roles {
		if k.ServerID == id {
			delete(s.roles, k)
		}
	}
	for k, ch := range s.channels {
		if ch.ServerID == id {
			delete(s.channels, k)
		}
	}
	return g
}

// Channel returns the channel with the given ID, or nil.
func (s *Store) Channel(id string) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[id]
}

// GetOrAddChannel returns the channel with the given ID, creating it on
// first reference with the given server scope.
func (s *Store) GetOrAddChannel(id, serverID string) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[id]; ok {
		return ch
	}
	ch := &Channel{ID: id, ServerID: serverID}
	s.channels[id] = ch
	return ch
}

// RemoveChannel removes and returns the channel, or nil if absent.
func (s *Store) RemoveChannel(id string) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.channels[id]
	delete(s.channels, id)
	return ch
}

// Member returns the member keyed (userID, serverID), or nil.
func (s *Store) Member(userID, serverID string) *Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[MemberKey{userID, serverID}]
}

// GetOrAddMember returns the member keyed (userID, serverID), creating it on
// first reference.
func (s *Store) GetOrAddMember(userID, serverID string) *Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := MemberKey{userID, serverID}
	if m, ok := s.members[k]; ok {
		return m
	}
	m := &Member{UserID: userID, ServerID: serverID}
	s.members[k] = m
	return m
}

// RemoveMember removes and returns the member, or nil if absent.
func (s *Store) RemoveMember(userID, serverID string) *Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := MemberKey{userID, serverID}
	m := s.members[k]
	delete(s.members, k)
	return m
}

// Members returns a snapshot of every cached member.
func (s *Store) Members() []*Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	return out
}

// Role returns the role keyed (id, serverID), or nil.
func (s *Store) Role(id, serverID string) *Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roles[RoleKey{id, serverID}]
}

// GetOrAddRole returns the role keyed (id, serverID), creating it on first
// reference.
func (s *Store) GetOrAddRole(id, serverID string) *Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := RoleKey{id, serverID}
	if r, ok := s.roles[k]; ok {
		return r
	}
	r := &Role{ID: id, ServerID: serverID}
	s.roles[k] = r
	return r
}

// RemoveRole removes and returns the role, or nil if absent.
func (s *Store) RemoveRole(id, serverID string) *Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := RoleKey{id, serverID}
	r := s.roles[k]
	delete(s.roles, k)
	return r
}

// Message returns the message with the given key (permanent ID or nonce),
// or nil.
func (s *Store) Message(key string) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[key]
}

// GetOrAddMessage returns the message with the given key, creating it on
// first reference in the given channel.
func (s *Store) GetOrAddMessage(key, channelID string) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[key]; ok {
		return m
	}
	m := &Message{ID: key, ChannelID: channelID}
	s.messages[key] = m
	return m
}

// RemoveMessage removes and returns the message, or nil if absent.
func (s *Store) RemoveMessage(key string) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.messages[key]
	delete(s.messages, key)
	return m
}

// RemapMessage atomically re-keys a message from oldKey to newKey, so that
// exactly one entry is reachable afterwards, under newKey only. Returns the
// remapped message, or nil if oldKey was absent. If newKey already exists
// (the stream announced the message before the remap), the existing entry
// wins and the provisional one is dropped.
func (s *Store) RemapMessage(oldKey, newKey string) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.messages[oldKey]
	if m == nil {
		return nil
	}
	delete(s.messages, oldKey)
	if existing, ok := s.messages[newKey]; ok {
		return existing
	}
	m.ID = newKey
	s.messages[newKey] = m
	return m
}

// MarkSent flips the message under key out of the queued sub-state. It
// returns the message and whether this call performed the flip; because the
// check and the write share the store lock, exactly one caller wins for any
// given entry no matter how the send pipeline and the event stream race.
func (s *Store) MarkSent(key string) (*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.messages[key]
	if m == nil || !m.Queued {
		return m, false
	}
	m.Queued = false
	return m, true
}

// Counts reports the number of entries per container, in the order users,
// servers, channels, members, roles, messages.
func (s *Store) Counts() (users, servers, channels, members, roles, messages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), len(s.servers), len(s.channels), len(s.members), len(s.roles), len(s.messages)
}
