package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	token, err := c.Login(context.Background(), "a@b.test", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, "a@b.test", gotBody["email"])
	assert.Equal(t, "hunter2", gotBody["password"])
}

func TestGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/gateway", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"url": "wss://gw.voxhall.test"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	url, err := c.Gateway(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wss://gw.voxhall.test", url)
}

func TestTokenHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"url": "wss://x"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Gateway(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)

	c.SetToken("tok-9")
	_, err = c.Gateway(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-9", gotAuth)
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/channels/c1/messages", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(Message{
			ID:        "m-1",
			ChannelID: "c1",
			Content:   body["content"].(string),
			Nonce:     body["nonce"].(string),
			Timestamp: "2015-08-01T12:00:00Z",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	msg, err := c.SendMessage(context.Background(), SendMessageRequest{
		ChannelID: "c1",
		Content:   "hello",
		Nonce:     "n-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "m-1", msg.ID)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "n-1", msg.Nonce)
}

func TestAckMessage(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	require.NoError(t, c.AckMessage(context.Background(), "c1", "m-7"))
	assert.Equal(t, "/channels/c1/messages/m-7/ack", gotPath)
}

func TestNonSuccessBecomesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "missing access"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.SendMessage(context.Background(), SendMessageRequest{
		ChannelID: "c1", Content: "nope",
	})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.Code)
	assert.Equal(t, "missing access", statusErr.Message)
	assert.Contains(t, statusErr.Error(), "403")
}

func TestTransportFailureIsNotStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	c := NewClient(srv.URL)
	_, err := c.Gateway(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Gateway(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
