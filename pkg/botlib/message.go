package botlib

import (
	"strings"

	"github.com/voxhall/voxhall/pkg/cache"
)

// Message represents a chat message received by the bot.
type Message struct {
	ID         string
	ChannelID  string
	AuthorID   string
	AuthorName string
	Content    string
	MentionIDs []string

	// Internal: the bot's identity for mention detection
	botUserID string
	botName   string
}

func newMessage(b *Bot, m *cache.Message) *Message {
	msg := &Message{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		AuthorID:   m.AuthorID,
		Content:    m.Text,
		MentionIDs: m.MentionIDs,
	}
	if author := b.client.Cache().User(m.AuthorID); author != nil {
		msg.AuthorName = author.Name
	}
	if me := b.client.CurrentUser(); me != nil {
		msg.botUserID = me.ID
		msg.botName = me.Name
	}
	return msg
}

// IsPrivate reports whether the message arrived on a direct channel.
func (m *Message) IsPrivate(b *Bot) bool {
	ch := b.client.Cache().Channel(m.ChannelID)
	return ch != nil && ch.IsPrivate
}

// MentionsMe returns true if the message mentions the bot, either through
// an explicit mention or an @name pattern in the text.
func (m *Message) MentionsMe() bool {
	for _, id := range m.MentionIDs {
		if id != "" && id == m.botUserID {
			return true
		}
	}
	if m.botName == "" {
		return false
	}

	content := strings.ToLower(m.Content)
	name := strings.ToLower(m.botName)
	if strings.Contains(content, "@"+name) {
		return true
	}
	// Name at the start of the message is a common pattern too.
	return strings.HasPrefix(content, name+":") ||
		strings.HasPrefix(content, name+",") ||
		strings.HasPrefix(content, name+" ")
}

// MentionedContent returns the message content with the bot mention
// removed. Useful for extracting the actual query/command.
func (m *Message) MentionedContent() string {
	if m.botName == "" {
		return strings.TrimSpace(m.Content)
	}

	content := m.Content
	content = strings.ReplaceAll(content, "@"+m.botName, "")
	content = strings.ReplaceAll(content, "@"+strings.ToLower(m.botName), "")

	lower := strings.ToLower(content)
	lowerName := strings.ToLower(m.botName)
	switch {
	case strings.HasPrefix(lower, lowerName+":"),
		strings.HasPrefix(lower, lowerName+","):
		content = content[len(m.botName)+1:]
	case strings.HasPrefix(lower, lowerName+" "):
		content = content[len(m.botName)+1:]
	}

	return strings.TrimSpace(content)
}
