package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/voxhall/voxhall/pkg/cache"
	"github.com/voxhall/voxhall/pkg/gateway"
	"github.com/voxhall/voxhall/pkg/voice"
)

// provisionalKey is the cache key an outbound message lives under until the
// service assigns its permanent id. The prefix keeps the provisional and
// permanent keyspaces disjoint.
func provisionalKey(nonce string) string {
	return "pending:" + nonce
}

// syncLoop is the single consumer of the gateway event stream. Events are
// applied strictly in arrival order; later events may reference entities
// earlier ones created.
func (c *Client) syncLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.gateway.Events():
			c.applyEvent(ev)
		}
	}
}

// applyEvent folds one inbound event into the cache, then notifies. The
// mutation always lands before observers see it.
func (c *Client) applyEvent(ev gateway.Event) {
	metricEvents.WithLabelValues(ev.Type).Inc()

	switch ev.Type {
	case gateway.EventReady:
		c.applyReady(ev.Data)
	case gateway.EventResumed:
		// Stream resumed with no state change.
	case gateway.EventGuildCreate:
		c.applyGuildCreate(ev.Data)
	case gateway.EventGuildUpdate:
		c.applyGuildUpdate(ev.Data)
	case gateway.EventGuildDelete:
		c.applyGuildDelete(ev.Data)
	case gateway.EventChannelCreate:
		c.applyChannelCreate(ev.Data)
	case gateway.EventChannelUpdate:
		c.applyChannelUpdate(ev.Data)
	case gateway.EventChannelDelete:
		c.applyChannelDelete(ev.Data)
	case gateway.EventMemberAdd:
		c.applyMemberAdd(ev.Data)
	case gateway.EventMemberUpdate:
		c.applyMemberUpdate(ev.Data)
	case gateway.EventMemberRemove:
		c.applyMemberRemove(ev.Data)
	case gateway.EventRoleCreate:
		c.applyRoleCreate(ev.Data)
	case gateway.EventRoleUpdate:
		c.applyRoleUpdate(ev.Data)
	case gateway.EventRoleDelete:
		c.applyRoleDelete(ev.Data)
	case gateway.EventBanAdd:
		c.applyBan(ev.Data, true)
	case gateway.EventBanRemove:
		c.applyBan(ev.Data, false)
	case gateway.EventMessageCreate:
		c.applyMessageCreate(ev.Data)
	case gateway.EventMessageUpdate:
		c.applyMessageUpdate(ev.Data)
	case gateway.EventMessageDelete:
		c.applyMessageDelete(ev.Data)
	case gateway.EventMessageAck:
		c.applyMessageAck(ev.Data)
	case gateway.EventTypingStart:
		c.applyTypingStart(ev.Data)
	case gateway.EventPresenceUpdate:
		c.applyPresenceUpdate(ev.Data)
	case gateway.EventUserUpdate:
		c.applyUserUpdate(ev.Data)
	case gateway.EventVoiceStateUpdate:
		c.applyVoiceStateUpdate(ev.Data)
	case gateway.EventVoiceServerUpdate:
		c.applyVoiceServerUpdate(ev.Data)
	default:
		c.logf("Ignoring unknown event type %q", ev.Type)
	}
}

func (c *Client) decode(data json.RawMessage, into interface{}, eventType string) bool {
	if err := json.Unmarshal(data, into); err != nil {
		c.logf("Dropping undecodable %s payload: %v", eventType, err)
		return false
	}
	return true
}

// applyUserFields copies wire fields onto a cached user, creating it on
// first reference.
func (c *Client) applyUserFields(fields *gateway.UserFields) *cache.User {
	u := c.cache.GetOrAddUser(fields.ID)
	if fields.Username != "" {
		u.Name = fields.Username
	}
	if fields.Discriminator != "" {
		u.Discriminator = fields.Discriminator
	}
	if fields.Avatar != "" {
		u.AvatarID = fields.Avatar
	}
	return u
}

func applyChannelFields(ch *cache.Channel, fields *gateway.ChannelFields) {
	ch.Name = fields.Name
	ch.Topic = fields.Topic
	ch.Position = fields.Position
	if fields.Type != "" {
		ch.Type = fields.Type
	}
	ch.IsPrivate = fields.IsPrivate
}

func applyRoleFields(r *cache.Role, fields *gateway.RoleFields) {
	r.Name = fields.Name
	r.Permissions = fields.Permissions
	r.Color = fields.Color
	r.Hoist = fields.Hoist
	r.Position = fields.Position
}

func applyServerFields(s *cache.Server, fields *gateway.GuildFields) {
	s.Name = fields.Name
	s.OwnerID = fields.OwnerID
	s.Region = fields.Region
	s.IconID = fields.Icon
	s.AFKChannelID = fields.AFKChannelID
	s.AFKTimeout = fields.AFKTimeout
}

// createGuild bulk-creates a guild and everything scoped to it.
func (c *Client) createGuild(fields *gateway.GuildFields) *cache.Server {
	s := c.cache.GetOrAddServer(fields.ID)
	applyServerFields(s, fields)
	for i := range fields.Roles {
		r := c.cache.GetOrAddRole(fields.Roles[i].ID, s.ID)
		applyRoleFields(r, &fields.Roles[i])
	}
	for i := range fields.Channels {
		ch := c.cache.GetOrAddChannel(fields.Channels[i].ID, s.ID)
		applyChannelFields(ch, &fields.Channels[i])
	}
	for i := range fields.Members {
		c.createMember(&fields.Members[i], s.ID)
	}
	for i := range fields.VoiceStates {
		vs := &fields.VoiceStates[i]
		if m := c.cache.Member(vs.UserID, s.ID); m != nil {
			c.cache.Update(func() { applyVoiceState(m, vs) })
		}
	}
	return s
}

func (c *Client) createMember(fields *gateway.MemberFields, serverID string) *cache.Member {
	c.applyUserFields(&fields.User)
	m := c.cache.GetOrAddMember(fields.User.ID, serverID)
	m.RoleIDs = fields.Roles
	m.Mute = fields.Mute
	m.Deaf = fields.Deaf
	if fields.JoinedAt != "" {
		if t, err := time.Parse(time.RFC3339, fields.JoinedAt); err == nil {
			m.JoinedAt = t
		}
	}
	return m
}

func applyVoiceState(m *cache.Member, vs *gateway.VoiceStateEvent) {
	m.SessionID = vs.SessionID
	m.VoiceChannel = vs.ChannelID
	m.Mute = vs.Mute
	m.Deaf = vs.Deaf
	m.SelfMute = vs.SelfMute
	m.SelfDeaf = vs.SelfDeaf
	m.Suppress = vs.Suppress
}

// applyReady handles the full resync: current user identity plus every
// visible guild and private channel.
func (c *Client) applyReady(data json.RawMessage) {
	var ready gateway.ReadyEvent
	if !c.decode(data, &ready, gateway.EventReady) {
		return
	}

	me := c.applyUserFields(&ready.User)
	c.mu.Lock()
	c.currentUserID = me.ID
	c.sessionID = ready.SessionID
	c.mu.Unlock()

	for i := range ready.Guilds {
		if ready.Guilds[i].Unavailable {
			continue
		}
		c.createGuild(&ready.Guilds[i])
	}
	for i := range ready.PrivateChannels {
		pc := &ready.PrivateChannels[i]
		ch := c.cache.GetOrAddChannel(pc.ID, "")
		applyChannelFields(ch, pc)
		ch.IsPrivate = true
		if pc.Recipient != nil {
			peer := c.applyUserFields(pc.Recipient)
			peer.IsPrivate = true
			ch.RecipientID = peer.ID
		}
	}
	c.logf("Ready: session %s, %d servers, %d private channels",
		ready.SessionID, len(ready.Guilds), len(ready.PrivateChannels))
}

func (c *Client) applyGuildCreate(data json.RawMessage) {
	var fields gateway.GuildFields
	if !c.decode(data, &fields, gateway.EventGuildCreate) {
		return
	}
	if fields.Unavailable {
		return
	}
	s := c.createGuild(&fields)
	c.fireServerCreated(s)
}

func (c *Client) applyGuildUpdate(data json.RawMessage) {
	var fields gateway.GuildFields
	if !c.decode(data, &fields, gateway.EventGuildUpdate) {
		return
	}
	s := c.cache.Server(fields.ID)
	if s == nil {
		return
	}
	applyServerFields(s, &fields)
	c.fireServerUpdated(s)
}

func (c *Client) applyGuildDelete(data json.RawMessage) {
	var fields gateway.GuildDeleteEvent
	if !c.decode(data, &fields, gateway.EventGuildDelete) {
		return
	}
	if s := c.cache.RemoveServer(fields.ID); s != nil {
		c.fireServerDestroyed(s)
	}
}

func (c *Client) applyChannelCreate(data json.RawMessage) {
	var fields gateway.ChannelFields
	if !c.decode(data, &fields, gateway.EventChannelCreate) {
		return
	}
	ch := c.cache.GetOrAddChannel(fields.ID, fields.GuildID)
	applyChannelFields(ch, &fields)
	if fields.Recipient != nil {
		peer := c.applyUserFields(fields.Recipient)
		peer.IsPrivate = true
		ch.RecipientID = peer.ID
		ch.IsPrivate = true
	}
	c.fireChannelCreated(ch)
}

func (c *Client) applyChannelUpdate(data json.RawMessage) {
	var fields gateway.ChannelFields
	if !c.decode(data, &fields, gateway.EventChannelUpdate) {
		return
	}
	ch := c.cache.Channel(fields.ID)
	if ch == nil {
		return
	}
	applyChannelFields(ch, &fields)
	c.fireChannelUpdated(ch)
}

func (c *Client) applyChannelDelete(data json.RawMessage) {
	var fields gateway.ChannelFields
	if !c.decode(data, &fields, gateway.EventChannelDelete) {
		return
	}
	if ch := c.cache.RemoveChannel(fields.ID); ch != nil {
		c.fireChannelDestroyed(ch)
	}
}

func (c *Client) applyMemberAdd(data json.RawMessage) {
	var fields gateway.MemberFields
	if !c.decode(data, &fields, gateway.EventMemberAdd) {
		return
	}
	m := c.createMember(&fields, fields.GuildID)
	c.fireMemberJoined(m)
}

func (c *Client) applyMemberUpdate(data json.RawMessage) {
	var fields gateway.MemberFields
	if !c.decode(data, &fields, gateway.EventMemberUpdate) {
		return
	}
	m := c.cache.Member(fields.User.ID, fields.GuildID)
	if m == nil {
		return
	}
	c.applyUserFields(&fields.User)
	m.RoleIDs = fields.Roles
	m.Mute = fields.Mute
	m.Deaf = fields.Deaf
	c.fireMemberUpdated(m)
}

func (c *Client) applyMemberRemove(data json.RawMessage) {
	var fields gateway.MemberRemoveEvent
	if !c.decode(data, &fields, gateway.EventMemberRemove) {
		return
	}
	if m := c.cache.RemoveMember(fields.User.ID, fields.GuildID); m != nil {
		c.fireMemberLeft(m)
	}
}

func (c *Client) applyRoleCreate(data json.RawMessage) {
	var fields gateway.RoleCreateEvent
	if !c.decode(data, &fields, gateway.EventRoleCreate) {
		return
	}
	r := c.cache.GetOrAddRole(fields.Role.ID, fields.GuildID)
	applyRoleFields(r, &fields.Role)
	c.fireRoleCreated(r)
}

func (c *Client) applyRoleUpdate(data json.RawMessage) {
	var fields gateway.RoleCreateEvent
	if !c.decode(data, &fields, gateway.EventRoleUpdate) {
		return
	}
	r := c.cache.Role(fields.Role.ID, fields.GuildID)
	if r == nil {
		return
	}
	applyRoleFields(r, &fields.Role)
	c.fireRoleUpdated(r)
}

func (c *Client) applyRoleDelete(data json.RawMessage) {
	var fields gateway.RoleDeleteEvent
	if !c.decode(data, &fields, gateway.EventRoleDelete) {
		return
	}
	if r := c.cache.RemoveRole(fields.RoleID, fields.GuildID); r != nil {
		c.fireRoleDestroyed(r)
	}
}

func (c *Client) applyBan(data json.RawMessage, added bool) {
	var fields gateway.BanEvent
	eventType := gateway.EventBanAdd
	if !added {
		eventType = gateway.EventBanRemove
	}
	if !c.decode(data, &fields, eventType) {
		return
	}
	s := c.cache.Server(fields.GuildID)
	if s == nil {
		return
	}
	u := c.applyUserFields(&fields.User)
	if added {
		c.fireBanAdded(u, s)
	} else {
		c.fireBanRemoved(u, s)
	}
}

func applyMessageFields(m *cache.Message, fields *gateway.MessageEvent) {
	m.ChannelID = fields.ChannelID
	m.Text = fields.Content
	m.IsTTS = fields.TTS
	if fields.Nonce != "" {
		m.Nonce = fields.Nonce
	}
	if fields.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, fields.Timestamp); err == nil {
			m.Timestamp = t
		}
	}
	if fields.EditedTimestamp != "" {
		if t, err := time.Parse(time.RFC3339, fields.EditedTimestamp); err == nil {
			m.EditedAt = &t
		}
	}
	m.MentionIDs = m.MentionIDs[:0]
	for i := range fields.Mentions {
		m.MentionIDs = append(m.MentionIDs, fields.Mentions[i].ID)
	}
}

// applyMessageCreate creates the message and, when it is the service's echo
// of one of our own queued sends, reconciles the optimistic local entry:
// the provisional key is remapped to the permanent id and a single sent
// notification fires alongside the created one.
func (c *Client) applyMessageCreate(data json.RawMessage) {
	var fields gateway.MessageEvent
	if !c.decode(data, &fields, gateway.EventMessageCreate) {
		return
	}

	c.mu.Lock()
	me := c.currentUserID
	c.mu.Unlock()

	var author *cache.User
	if fields.Author != nil {
		author = c.applyUserFields(fields.Author)
	}

	var m *cache.Message
	if author != nil && author.ID == me && fields.Nonce != "" {
		if pending := c.cache.RemapMessage(provisionalKey(fields.Nonce), fields.ID); pending != nil {
			m = pending
			// The send loop may be applying the REST response to this
			// same entry; field writes stay under the store lock.
			c.cache.Update(func() {
				applyMessageFields(m, &fields)
				m.AuthorID = author.ID
			})
			if sent, won := c.cache.MarkSent(m.ID); won {
				metricSends.WithLabelValues("confirmed").Inc()
				c.fireMessageSent(sent)
			}
		}
	}
	if m == nil {
		m = c.cache.GetOrAddMessage(fields.ID, fields.ChannelID)
		c.cache.Update(func() {
			applyMessageFields(m, &fields)
			if author != nil {
				m.AuthorID = author.ID
			}
		})
	}

	if c.config.TrackActivity && m.AuthorID != "" {
		c.stampActivity(m.AuthorID, m.ChannelID)
	}
	c.fireMessageCreated(m)
}

func (c *Client) applyMessageUpdate(data json.RawMessage) {
	var fields gateway.MessageEvent
	if !c.decode(data, &fields, gateway.EventMessageUpdate) {
		return
	}
	m := c.cache.Message(fields.ID)
	if m == nil {
		return
	}
	c.cache.Update(func() { applyMessageFields(m, &fields) })
	c.fireMessageUpdated(m)
}

func (c *Client) applyMessageDelete(data json.RawMessage) {
	var fields gateway.MessageDeleteEvent
	if !c.decode(data, &fields, gateway.EventMessageDelete) {
		return
	}
	if m := c.cache.RemoveMessage(fields.ID); m != nil {
		c.fireMessageDestroyed(m)
	}
}

func (c *Client) applyMessageAck(data json.RawMessage) {
	var fields gateway.MessageAckEvent
	if !c.decode(data, &fields, gateway.EventMessageAck) {
		return
	}
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()
	if store != nil {
		if err := store.UpdateReadState(fields.ChannelID, fields.MessageID); err != nil {
			c.logf("Persisting read state failed: %v", err)
		}
	}
	c.fireMessageReadRemotely(fields.ChannelID, fields.MessageID)
}

func (c *Client) applyTypingStart(data json.RawMessage) {
	var fields gateway.TypingStartEvent
	if !c.decode(data, &fields, gateway.EventTypingStart) {
		return
	}
	ch := c.cache.Channel(fields.ChannelID)
	if ch == nil {
		return
	}
	u := c.cache.User(fields.UserID)
	if u == nil {
		return
	}
	if c.config.TrackActivity {
		c.stampActivity(fields.UserID, fields.ChannelID)
	}
	c.fireUserIsTyping(u, ch)
}

// stampActivity updates last-activity on the user and, when the channel is
// server-scoped, on the matching member.
func (c *Client) stampActivity(userID, channelID string) {
	now := time.Now()
	u := c.cache.User(userID)
	var m *cache.Member
	if ch := c.cache.Channel(channelID); ch != nil && ch.ServerID != "" {
		m = c.cache.Member(userID, ch.ServerID)
	}
	c.cache.Update(func() {
		if u != nil {
			u.LastActivity = now
		}
		if m != nil {
			m.LastActivity = now
		}
	})
}

func (c *Client) applyPresenceUpdate(data json.RawMessage) {
	var fields gateway.PresenceUpdateEvent
	if !c.decode(data, &fields, gateway.EventPresenceUpdate) {
		return
	}
	m := c.cache.Member(fields.User.ID, fields.GuildID)
	if m == nil {
		return
	}
	u := c.applyUserFields(&fields.User)
	u.Status = fields.Status
	u.GameID = fields.GameID
	if len(fields.Roles) > 0 {
		m.RoleIDs = fields.Roles
	}
	if c.config.TrackActivity && fields.Status != "" {
		u.LastActivity = time.Now()
	}
	c.fireMemberUpdated(m)
}

func (c *Client) applyUserUpdate(data json.RawMessage) {
	var fields gateway.UserFields
	if !c.decode(data, &fields, gateway.EventUserUpdate) {
		return
	}
	if c.cache.User(fields.ID) == nil {
		return
	}
	u := c.applyUserFields(&fields)
	c.fireUserUpdated(u)
}

// applyVoiceStateUpdate mirrors a member's voice state. Leaving the voice
// channel or changing session implies the user stopped transmitting; that
// clears the speaking flag exactly as an explicit speaking=false would.
func (c *Client) applyVoiceStateUpdate(data json.RawMessage) {
	var fields gateway.VoiceStateEvent
	if !c.decode(data, &fields, gateway.EventVoiceStateUpdate) {
		return
	}
	m := c.cache.Member(fields.UserID, fields.GuildID)
	if m == nil {
		return
	}
	// The voice loop flips IsSpeaking on its own goroutine; the whole
	// read-modify sequence runs under the store lock.
	var stoppedSpeaking bool
	c.cache.Update(func() {
		wasSpeaking := m.IsSpeaking
		sessionChanged := m.SessionID != "" && m.SessionID != fields.SessionID
		applyVoiceState(m, &fields)
		if wasSpeaking && (fields.ChannelID == "" || sessionChanged) {
			m.IsSpeaking = false
			stoppedSpeaking = true
		}
	})
	if stoppedSpeaking {
		c.fireUserIsSpeaking(m, false)
	}
	c.fireMemberUpdated(m)
}

// applyVoiceServerUpdate hands the media endpoint assignment to the state
// machine over a channel; the synchronizer never calls into the voice
// socket directly.
func (c *Client) applyVoiceServerUpdate(data json.RawMessage) {
	var fields gateway.VoiceServerUpdateEvent
	if !c.decode(data, &fields, gateway.EventVoiceServerUpdate) {
		return
	}
	if c.voice == nil || !c.config.EnableVoice {
		c.logf("Ignoring voice endpoint assignment: voice disabled")
		return
	}
	c.mu.Lock()
	params := voice.LoginParams{
		Endpoint:  fields.Endpoint,
		ServerID:  fields.GuildID,
		UserID:    c.currentUserID,
		SessionID: c.sessionID,
		Token:     fields.Token,
	}
	c.mu.Unlock()
	select {
	case c.voiceReq <- params:
	default:
		c.logf("Voice handoff channel full, dropping endpoint assignment")
	}
}
