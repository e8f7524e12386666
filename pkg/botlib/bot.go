// Package botlib provides a small library for building Voxhall bots on top
// of the client engine: connect once, react to messages, reply.
package botlib

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/voxhall/voxhall/pkg/cache"
	"github.com/voxhall/voxhall/pkg/client"
)

// MessageHandler is called when a new message is received.
type MessageHandler func(ctx *Context, msg *Message)

// Config holds the bot configuration.
type Config struct {
	// APIURL is the Voxhall API base URL.
	APIURL string

	// Token authenticates the bot account.
	Token string

	// Logger for debug output (optional, defaults to stdout)
	Logger *log.Logger

	// Client overrides the default client wiring; used by tests.
	Client *client.Client
}

// Bot represents a Voxhall bot instance.
type Bot struct {
	config Config
	client *client.Client
	logger *log.Logger

	// Handlers
	onMessage MessageHandler
	onMention MessageHandler
	onTyping  func(ctx *Context, user *cache.User, channel *cache.Channel)

	// Lifecycle
	stopOnce sync.Once
	stopCh   chan struct{}
	errCh    chan error
}

// New creates a new Bot with the given configuration.
func New(config Config) *Bot {
	if config.Logger == nil {
		config.Logger = log.New(os.Stdout, "[bot] ", log.LstdFlags)
	}
	c := config.Client
	if c == nil {
		c = client.NewDefault(config.APIURL, client.Config{
			UseMessageQueue: true,
			TrackActivity:   true,
		})
	}

	return &Bot{
		config: config,
		client: c,
		logger: config.Logger,
		stopCh: make(chan struct{}),
		errCh:  make(chan error, 1),
	}
}

// Client exposes the underlying client for direct cache reads or sends.
func (b *Bot) Client() *client.Client {
	return b.client
}

// OnMessage registers a handler for all new messages from other users.
func (b *Bot) OnMessage(handler MessageHandler) {
	b.onMessage = handler
}

// OnMention registers a handler for messages that mention the bot. A
// mentioned message goes to this handler only, not to OnMessage.
func (b *Bot) OnMention(handler MessageHandler) {
	b.onMention = handler
}

// OnTyping registers a handler for typing activity.
func (b *Bot) OnTyping(handler func(ctx *Context, user *cache.User, channel *cache.Channel)) {
	b.onTyping = handler
}

// Run connects and processes messages until Stop is called, a shutdown
// signal arrives, or the connection is lost unexpectedly.
func (b *Bot) Run() error {
	b.client.OnMessageCreated(b.handleMessage)
	if b.onTyping != nil {
		b.client.OnUserIsTyping(func(u *cache.User, ch *cache.Channel) {
			b.onTyping(&Context{bot: b}, u, ch)
		})
	}
	b.client.OnDisconnected(func(err error) {
		if err != nil {
			select {
			case b.errCh <- err:
			default:
			}
		}
	})

	b.logger.Printf("Connecting to %s...", b.config.APIURL)
	if err := b.client.Connect(b.config.Token); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	if me := b.client.CurrentUser(); me != nil {
		b.logger.Printf("Logged in as %s#%s", me.Name, me.Discriminator)
	}
	b.logger.Printf("Bot is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		b.logger.Printf("Shutdown signal received")
	case <-b.stopCh:
		b.logger.Printf("Stop requested")
	case err := <-b.errCh:
		b.logger.Printf("Connection lost: %v", err)
		return err
	}

	return b.shutdown()
}

// Stop gracefully stops the bot.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

func (b *Bot) shutdown() error {
	if err := b.client.Disconnect(); err != nil {
		return err
	}
	b.logger.Printf("Bot stopped")
	return nil
}

func (b *Bot) handleMessage(m *cache.Message) {
	me := b.client.CurrentUser()
	if me == nil || m.AuthorID == me.ID || m.AuthorID == "" {
		// Our own sends (and their echoes) never trigger handlers.
		return
	}

	msg := newMessage(b, m)
	ctx := &Context{bot: b, message: msg}

	if msg.MentionsMe() {
		if b.onMention != nil {
			b.onMention(ctx, msg)
		}
		return
	}
	if b.onMessage != nil {
		b.onMessage(ctx, msg)
	}
}

func (b *Bot) postMessage(channelID, content string, mentions ...string) error {
	_, err := b.client.SendMessage(channelID, content, mentions...)
	return err
}
