package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voxhall/voxhall/pkg/cache"
	"github.com/voxhall/voxhall/pkg/rest"
)

// ErrEmptyMessage is returned for a send with no channel or no text.
var ErrEmptyMessage = errors.New("client: message channel or text is empty")

// SendMessage queues a message for delivery and returns the optimistic
// local entry immediately. The entry lives in the cache under a provisional
// key until the service assigns its permanent id; its Queued and Failed
// flags track the pipeline's progress. With the message queue disabled the
// call delivers inline and returns any delivery error.
func (c *Client) SendMessage(channelID, text string, mentions ...string) (*cache.Message, error) {
	return c.sendMessage(channelID, text, mentions, false)
}

// SendTTSMessage is SendMessage with text-to-speech requested.
func (c *Client) SendTTSMessage(channelID, text string, mentions ...string) (*cache.Message, error) {
	return c.sendMessage(channelID, text, mentions, true)
}

func (c *Client) sendMessage(channelID, text string, mentions []string, tts bool) (*cache.Message, error) {
	if channelID == "" || text == "" {
		return nil, ErrEmptyMessage
	}
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}

	nonce := uuid.NewString()
	m := c.cache.GetOrAddMessage(provisionalKey(nonce), channelID)
	m.Nonce = nonce
	m.Text = text
	m.MentionIDs = mentions
	m.IsTTS = tts
	m.Timestamp = time.Now()
	m.Queued = true
	c.mu.Lock()
	m.AuthorID = c.currentUserID
	scopeCtx := c.scopeCtx
	c.mu.Unlock()

	if !c.config.UseMessageQueue {
		if scopeCtx == nil {
			scopeCtx = context.Background()
		}
		if !c.deliver(scopeCtx, m) {
			c.cache.RemoveMessage(provisionalKey(nonce))
			return nil, fmt.Errorf("client: send failed, no connectivity")
		}
		return m, nil
	}

	c.queueMu.Lock()
	c.queue = append(c.queue, m)
	metricQueueDepth.Set(float64(len(c.queue)))
	c.queueMu.Unlock()
	c.logf("Queued message %s for channel %s", nonce, channelID)
	return m, nil
}

// sendLoop drains the queue on a fixed interval until the scope is
// cancelled. A panic inside the pipeline is returned as an error so the
// run loop can funnel it into the unexpected-disconnect path.
func (c *Client) sendLoop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send pipeline panic: %v", r)
		}
	}()

	ticker := time.NewTicker(c.config.MessageQueueInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.drainQueue(ctx)
		}
	}
}

// drainQueue sends every currently queued entry in FIFO order. A transport
// failure stops the cycle and leaves the entry (and its successors) queued
// for the next one.
func (c *Client) drainQueue(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.queueMu.Lock()
		if len(c.queue) == 0 {
			c.queueMu.Unlock()
			return
		}
		m := c.queue[0]
		c.queue = c.queue[1:]
		metricQueueDepth.Set(float64(len(c.queue)))
		c.queueMu.Unlock()

		if !c.deliver(ctx, m) {
			c.queueMu.Lock()
			c.queue = append([]*cache.Message{m}, c.queue...)
			metricQueueDepth.Set(float64(len(c.queue)))
			c.queueMu.Unlock()
			return
		}
	}
}

// deliver attempts one REST send and applies the outcome table. It reports
// false only for transport-level failure, which is the one retryable case.
func (c *Client) deliver(ctx context.Context, m *cache.Message) bool {
	resp, err := c.rest.SendMessage(ctx, rest.SendMessageRequest{
		ChannelID: m.ChannelID,
		Content:   m.Text,
		Mentions:  m.MentionIDs,
		Nonce:     m.Nonce,
		TTS:       m.IsTTS,
	})

	var statusErr *rest.StatusError
	switch {
	case err == nil:
		// The stream's echo of this nonce may have remapped the entry
		// already; RemapMessage and MarkSent both resolve that race inside
		// the cache lock so the entry lands under the permanent id exactly
		// once and at most one sent notification fires. Field application
		// takes the same lock because the synchronizer writes the same
		// entry on its own goroutine.
		c.cache.RemapMessage(provisionalKey(m.Nonce), resp.ID)
		target, won := c.cache.MarkSent(resp.ID)
		if target != nil {
			c.cache.Update(func() { applyRestMessage(target, resp) })
		}
		if won {
			metricSends.WithLabelValues("success").Inc()
			c.fireMessageSent(target)
		}
		return true

	case errors.As(err, &statusErr):
		// Service received and rejected it; the entry keeps its
		// provisional key and the caller observes the Failed flag.
		c.logf("Message %s rejected: %v", m.Nonce, statusErr)
		target, won := c.cache.MarkSent(provisionalKey(m.Nonce))
		if target != nil {
			c.cache.Update(func() { target.Failed = true })
		}
		metricSends.WithLabelValues("rejected").Inc()
		if won {
			c.fireMessageSent(target)
		}
		return true

	default:
		c.logf("Message %s deferred, transport failure: %v", m.Nonce, err)
		metricSends.WithLabelValues("deferred").Inc()
		return false
	}
}

func applyRestMessage(m *cache.Message, resp *rest.Message) {
	if resp.Content != "" {
		m.Text = resp.Content
	}
	if resp.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, resp.Timestamp); err == nil {
			m.Timestamp = t
		}
	}
	m.IsTTS = resp.TTS
	if len(resp.Mentions) > 0 {
		m.MentionIDs = m.MentionIDs[:0]
		for _, ref := range resp.Mentions {
			m.MentionIDs = append(m.MentionIDs, ref.ID)
		}
	}
}

// queueDepth reports how many messages are waiting to be drained.
func (c *Client) queueDepth() int {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return len(c.queue)
}
