package botlib

import "fmt"

// Context provides methods for responding to messages. It is passed to
// message handlers and provides a convenient API for common bot actions.
type Context struct {
	bot     *Bot
	message *Message
}

// Message returns the message that triggered this context, or nil for
// contexts without one (typing notifications).
func (c *Context) Message() *Message {
	return c.message
}

// Reply sends a message to the channel the current message arrived on.
func (c *Context) Reply(content string) error {
	if c.message == nil {
		return fmt.Errorf("botlib: no message to reply to")
	}
	return c.bot.postMessage(c.message.ChannelID, content)
}

// ReplyMention sends a reply that explicitly mentions the author.
func (c *Context) ReplyMention(content string) error {
	if c.message == nil {
		return fmt.Errorf("botlib: no message to reply to")
	}
	return c.bot.postMessage(c.message.ChannelID, content, c.message.AuthorID)
}

// Send posts a message to an arbitrary channel.
func (c *Context) Send(channelID, content string) error {
	return c.bot.postMessage(channelID, content)
}

// ChannelID returns the channel the message was received on.
func (c *Context) ChannelID() string {
	if c.message == nil {
		return ""
	}
	return c.message.ChannelID
}

// Author returns the display name of the message author.
func (c *Context) Author() string {
	if c.message == nil {
		return ""
	}
	return c.message.AuthorName
}

// BotName returns the bot's display name, "" before login completes.
func (c *Context) BotName() string {
	if me := c.bot.client.CurrentUser(); me != nil {
		return me.Name
	}
	return ""
}

// Log logs a message using the bot's logger.
func (c *Context) Log(format string, args ...interface{}) {
	if c.bot.logger != nil {
		c.bot.logger.Printf(format, args...)
	}
}

// String returns a debug representation of the context.
func (c *Context) String() string {
	if c.message == nil {
		return "Context{}"
	}
	return fmt.Sprintf("Context{channel=%s, message=%s, author=%s}",
		c.message.ChannelID, c.message.ID, c.message.AuthorName)
}
