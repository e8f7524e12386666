// Package rest wraps the Voxhall HTTP API calls the client engine needs:
// credential login, gateway endpoint discovery, and message send/ack.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

const defaultTimeout = 10 * time.Second

// Message is the descriptor the service returns for a sent message.
type Message struct {
	ID              string       `json:"id"`
	ChannelID       string       `json:"channel_id"`
	Content         string       `json:"content"`
	Timestamp       string       `json:"timestamp"`
	Nonce           string       `json:"nonce"`
	TTS             bool         `json:"tts"`
	Mentions        []MentionRef `json:"mentions"`
	EditedTimestamp string       `json:"edited_timestamp"`
}

// MentionRef identifies one mentioned user in a message response.
type MentionRef struct {
	ID string `json:"id"`
}

// SendMessageRequest carries one outbound message.
type SendMessageRequest struct {
	ChannelID string
	Content   string
	Mentions  []string
	Nonce     string
	TTS       bool
}

// Client talks to the Voxhall REST API. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *log.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a REST client for the given API base URL, e.g.
// "https://api.voxhall.net/v3".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		timeout: defaultTimeout,
	}
}

// SetLogger sets a logger for request debugging.
func (c *Client) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// SetTimeout overrides the per-call timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SetToken sets the authorization token used on subsequent calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return resp.Token, nil
}

// Logout invalidates the current session token.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Gateway resolves the websocket endpoint the client should connect to.
func (c *Client) Gateway(ctx context.Context) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/gateway", nil, &resp); err != nil {
		return "", fmt.Errorf("gateway lookup: %w", err)
	}
	return resp.URL, nil
}

// SendMessage posts a message to a channel and returns the service's
// descriptor for it.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	body := map[string]interface{}{
		"content":  req.Content,
		"mentions": req.Mentions,
		"nonce":    req.Nonce,
		"tts":      req.TTS,
	}
	var resp Message
	path := fmt.Sprintf("/channels/%s/messages", req.ChannelID)
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AckMessage marks a message as read for the current user.
func (c *Client) AckMessage(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/ack", channelID, messageID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// do runs one API call with the shared token, the per-call timeout, and
// whatever cancellation ctx carries. A non-2xx response becomes a
// *StatusError; anything else is a transport failure.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	c.mu.RUnlock()

	c.logf("→ %s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		se := &StatusError{Code: resp.StatusCode}
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			se.Message = apiErr.Message
		}
		c.logf("← %s %s: %d %s", method, path, se.Code, se.Message)
		return se
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
