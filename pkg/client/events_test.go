package client

import (
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voxhall/voxhall/pkg/cache"
)

func TestNotifierInvokesInRegistrationOrder(t *testing.T) {
	n := NewNotifier()

	var order []int
	n.OnMessageCreated(func(*cache.Message) { order = append(order, 1) })
	n.OnMessageCreated(func(*cache.Message) { order = append(order, 2) })
	n.OnMessageCreated(func(*cache.Message) { order = append(order, 3) })

	n.fireMessageCreated(&cache.Message{ID: "m1"})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestNotifierIsolatesPanickingObserver(t *testing.T) {
	n := NewNotifier()
	n.setLogger(log.New(os.Stderr, "", 0))

	var before, after bool
	n.OnConnected(func() { before = true })
	n.OnConnected(func() { panic("broken observer") })
	n.OnConnected(func() { after = true })

	n.fireConnected()

	assert.True(t, before)
	assert.True(t, after)
}

func TestNotifierObserverMayRegisterMore(t *testing.T) {
	n := NewNotifier()

	var nested bool
	n.OnServerCreated(func(*cache.Server) {
		n.OnServerCreated(func(*cache.Server) { nested = true })
	})

	n.fireServerCreated(&cache.Server{ID: "g1"})
	assert.False(t, nested)

	n.fireServerCreated(&cache.Server{ID: "g2"})
	assert.True(t, nested)
}

func TestNotifierZeroObserversIsFine(t *testing.T) {
	n := NewNotifier()
	n.fireConnected()
	n.fireDisconnected(nil)
	n.fireMessageSent(&cache.Message{})
	n.fireMessageReadRemotely("c1", "m1")
}
