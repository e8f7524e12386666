package client

import (
	"log"
	"sync"

	"github.com/voxhall/voxhall/pkg/cache"
)

// Notifier is the public notification surface. Observers are held in
// ordered lists and invoked synchronously, in registration order, from the
// synchronizer goroutine. Each observer is panic-isolated: one broken
// handler is logged and the rest still run.
type Notifier struct {
	mu     sync.RWMutex
	logger *log.Logger

	connected         []func()
	disconnected      []func(err error)
	voiceConnected    []func()
	voiceDisconnected []func(err error)

	serverCreated   []func(*cache.Server)
	serverUpdated   []func(*cache.Server)
	serverDestroyed []func(*cache.Server)

	channelCreated   []func(*cache.Channel)
	channelUpdated   []func(*cache.Channel)
	channelDestroyed []func(*cache.Channel)

	memberJoined  []func(*cache.Member)
	memberUpdated []func(*cache.Member)
	memberLeft    []func(*cache.Member)

	roleCreated   []func(*cache.Role)
	roleUpdated   []func(*cache.Role)
	roleDestroyed []func(*cache.Role)

	userUpdated []func(*cache.User)

	messageCreated   []func(*cache.Message)
	messageUpdated   []func(*cache.Message)
	messageDestroyed []func(*cache.Message)
	messageSent      []func(*cache.Message)
	messageRead      []func(channelID, messageID string)

	userIsTyping   []func(user *cache.User, channel *cache.Channel)
	userIsSpeaking []func(member *cache.Member, speaking bool)

	banAdded   []func(user *cache.User, server *cache.Server)
	banRemoved []func(user *cache.User, server *cache.Server)
}

// NewNotifier creates an empty notification surface.
func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) setLogger(logger *log.Logger) {
	n.mu.Lock()
	n.logger = logger
	n.mu.Unlock()
}

// invoke runs one observer, isolating panics at the dispatch boundary.
func (n *Notifier) invoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.mu.RLock()
			logger := n.logger
			n.mu.RUnlock()
			if logger != nil {
				logger.Printf("Observer panic in %s handler: %v", name, r)
			}
		}
	}()
	fn()
}

// Lifecycle registration.

func (n *Notifier) OnConnected(fn func()) {
	n.mu.Lock()
	n.connected = append(n.connected, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnDisconnected(fn func(err error)) {
	n.mu.Lock()
	n.disconnected = append(n.disconnected, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnVoiceConnected(fn func()) {
	n.mu.Lock()
	n.voiceConnected = append(n.voiceConnected, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnVoiceDisconnected(fn func(err error)) {
	n.mu.Lock()
	n.voiceDisconnected = append(n.voiceDisconnected, fn)
	n.mu.Unlock()
}

// Entity registration.

func (n *Notifier) OnServerCreated(fn func(*cache.Server)) {
	n.mu.Lock()
	n.serverCreated = append(n.serverCreated, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnServerUpdated(fn func(*cache.Server)) {
	n.mu.Lock()
	n.serverUpdated = append(n.serverUpdated, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnServerDestroyed(fn func(*cache.Server)) {
	n.mu.Lock()
	n.serverDestroyed = append(n.serverDestroyed, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnChannelCreated(fn func(*cache.Channel)) {
	n.mu.Lock()
	n.channelCreated = append(n.channelCreated, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnChannelUpdated(fn func(*cache.Channel)) {
	n.mu.Lock()
	n.channelUpdated = append(n.channelUpdated, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnChannelDestroyed(fn func(*cache.Channel)) {
	n.mu.Lock()
	n.channelDestroyed = append(n.channelDestroyed, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnMemberJoined(fn func(*cache.Member)) {
	n.mu.Lock()
	n.memberJoined = append(n.memberJoined, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnMemberUpdated(fn func(*cache.Member)) {
	n.mu.Lock()
	n.memberUpdated = append(n.memberUpdated, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnMemberLeft(fn func(*cache.Member)) {
	n.mu.Lock()
	n.memberLeft = append(n.memberLeft, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnRoleCreated(fn func(*cache.Role)) {
	n.mu.Lock()
	n.roleCreated = append(n.roleCreated, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnRoleUpdated(fn func(*cache.Role)) {
	n.mu.Lock()
	n.roleUpdated = append(n.roleUpdated, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnRoleDestroyed(fn func(*cache.Role)) {
	n.mu.Lock()
	n.roleDestroyed = append(n.roleDestroyed, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnUserUpdated(fn func(*cache.User)) {
	n.mu.Lock()
	n.userUpdated = append(n.userUpdated, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnMessageCreated(fn func(*cache.Message)) {
	n.mu.Lock()
	n.messageCreated = append(n.messageCreated, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnMessageUpdated(fn func(*cache.Message)) {
	n.mu.Lock()
	n.messageUpdated = append(n.messageUpdated, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnMessageDestroyed(fn func(*cache.Message)) {
	n.mu.Lock()
	n.messageDestroyed = append(n.messageDestroyed, fn)
	n.mu.Unlock()
}

// OnMessageSent observes outbound message completion, success or failure;
// the message's Failed flag carries the outcome.
func (n *Notifier) OnMessageSent(fn func(*cache.Message)) {
	n.mu.Lock()
	n.messageSent = append(n.messageSent, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnMessageReadRemotely(fn func(channelID, messageID string)) {
	n.mu.Lock()
	n.messageRead = append(n.messageRead, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnUserIsTyping(fn func(user *cache.User, channel *cache.Channel)) {
	n.mu.Lock()
	n.userIsTyping = append(n.userIsTyping, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnUserIsSpeaking(fn func(member *cache.Member, speaking bool)) {
	n.mu.Lock()
	n.userIsSpeaking = append(n.userIsSpeaking, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnBanAdded(fn func(user *cache.User, server *cache.Server)) {
	n.mu.Lock()
	n.banAdded = append(n.banAdded, fn)
	n.mu.Unlock()
}

func (n *Notifier) OnBanRemoved(fn func(user *cache.User, server *cache.Server)) {
	n.mu.Lock()
	n.banRemoved = append(n.banRemoved, fn)
	n.mu.Unlock()
}

// Dispatch. Each fire* snapshots the observer list under the read lock and
// invokes outside it, so handlers may register further observers.

func (n *Notifier) fireConnected() {
	n.mu.RLock()
	handlers := n.connected
	n.mu.RUnlock()
	for _, fn := range handlers {
		n.invoke("Connected", fn)
	}
}

func (n *Notifier) fireDisconnected(err error) {
	n.mu.RLock()
	handlers := n.disconnected
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("Disconnected", func() { fn(err) })
	}
}

func (n *Notifier) fireVoiceConnected() {
	n.mu.RLock()
	handlers := n.voiceConnected
	n.mu.RUnlock()
	for _, fn := range handlers {
		n.invoke("VoiceConnected", fn)
	}
}

func (n *Notifier) fireVoiceDisconnected(err error) {
	n.mu.RLock()
	handlers := n.voiceDisconnected
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("VoiceDisconnected", func() { fn(err) })
	}
}

func (n *Notifier) fireServerCreated(s *cache.Server) {
	n.mu.RLock()
	handlers := n.serverCreated
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("ServerCreated", func() { fn(s) })
	}
}

func (n *Notifier) fireServerUpdated(s *cache.Server) {
	n.mu.RLock()
	handlers := n.serverUpdated
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("ServerUpdated", func() { fn(s) })
	}
}

func (n *Notifier) fireServerDestroyed(s *cache.Server) {
	n.mu.RLock()
	handlers := n.serverDestroyed
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("ServerDestroyed", func() { fn(s) })
	}
}

func (n *Notifier) fireChannelCreated(ch *cache.Channel) {
	n.mu.RLock()
	handlers := n.channelCreated
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("ChannelCreated", func() { fn(ch) })
	}
}

func (n *Notifier) fireChannelUpdated(ch *cache.Channel) {
	n.mu.RLock()
	handlers := n.channelUpdated
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("ChannelUpdated", func() { fn(ch) })
	}
}

func (n *Notifier) fireChannelDestroyed(ch *cache.Channel) {
	n.mu.RLock()
	handlers := n.channelDestroyed
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("ChannelDestroyed", func() { fn(ch) })
	}
}

func (n *Notifier) fireMemberJoined(m *cache.Member) {
	n.mu.RLock()
	handlers := n.memberJoined
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("MemberJoined", func() { fn(m) })
	}
}

func (n *Notifier) fireMemberUpdated(m *cache.Member) {
	n.mu.RLock()
	handlers := n.memberUpdated
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("MemberUpdated", func() { fn(m) })
	}
}

func (n *Notifier) fireMemberLeft(m *cache.Member) {
	n.mu.RLock()
	handlers := n.memberLeft
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("MemberLeft", func() { fn(m) })
	}
}

func (n *Notifier) fireRoleCreated(r *cache.Role) {
	n.mu.RLock()
	handlers := n.roleCreated
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("RoleCreated", func() { fn(r) })
	}
}

func (n *Notifier) fireRoleUpdated(r *cache.Role) {
	n.mu.RLock()
	handlers := n.roleUpdated
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("RoleUpdated", func() { fn(r) })
	}
}

func (n *Notifier) fireRoleDestroyed(r *cache.Role) {
	n.mu.RLock()
	handlers := n.roleDestroyed
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("RoleDestroyed", func() { fn(r) })
	}
}

func (n *Notifier) fireUserUpdated(u *cache.User) {
	n.mu.RLock()
	handlers := n.userUpdated
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("UserUpdated", func() { fn(u) })
	}
}

func (n *Notifier) fireMessageCreated(m *cache.Message) {
	n.mu.RLock()
	handlers := n.messageCreated
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("MessageCreated", func() { fn(m) })
	}
}

func (n *Notifier) fireMessageUpdated(m *cache.Message) {
	n.mu.RLock()
	handlers := n.messageUpdated
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("MessageUpdated", func() { fn(m) })
	}
}

func (n *Notifier) fireMessageDestroyed(m *cache.Message) {
	n.mu.RLock()
	handlers := n.messageDestroyed
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("MessageDestroyed", func() { fn(m) })
	}
}

func (n *Notifier) fireMessageSent(m *cache.Message) {
	n.mu.RLock()
	handlers := n.messageSent
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("MessageSent", func() { fn(m) })
	}
}

func (n *Notifier) fireMessageReadRemotely(channelID, messageID string) {
	n.mu.RLock()
	handlers := n.messageRead
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("MessageReadRemotely", func() { fn(channelID, messageID) })
	}
}

func (n *Notifier) fireUserIsTyping(u *cache.User, ch *cache.Channel) {
	n.mu.RLock()
	handlers := n.userIsTyping
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("UserIsTyping", func() { fn(u, ch) })
	}
}

func (n *Notifier) fireUserIsSpeaking(m *cache.Member, speaking bool) {
	n.mu.RLock()
	handlers := n.userIsSpeaking
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("UserIsSpeaking", func() { fn(m, speaking) })
	}
}

func (n *Notifier) fireBanAdded(u *cache.User, s *cache.Server) {
	n.mu.RLock()
	handlers := n.banAdded
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("BanAdded", func() { fn(u, s) })
	}
}

func (n *Notifier) fireBanRemoved(u *cache.User, s *cache.Server) {
	n.mu.RLock()
	handlers := n.banRemoved
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn := fn
		n.invoke("BanRemoved", func() { fn(u, s) })
	}
}
