package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrAddReturnsSameEntry(t *testing.T) {
	s := NewStore()

	u1 := s.GetOrAddUser("u1")
	u1.Name = "alice"
	u2 := s.GetOrAddUser("u1")

	assert.Same(t, u1, u2)
	assert.Equal(t, "alice", u2.Name)

	m1 := s.GetOrAddMember("u1", "g1")
	m2 := s.GetOrAddMember("u1", "g1")
	assert.Same(t, m1, m2)

	// Same user in a different server is a distinct member.
	m3 := s.GetOrAddMember("u1", "g2")
	assert.NotSame(t, m1, m3)
}

func TestGetOrAddConcurrent(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	results := make([]*User, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.GetOrAddUser("u1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < 50; i++ {
		assert.Same(t, results[0], results[i])
	}
	users, _, _, _, _, _ := s.Counts()
	assert.Equal(t, 1, users)
}

func TestRemoveUnknownReturnsNil(t *testing.T) {
	s := NewStore()

	assert.Nil(t, s.RemoveUser("nope"))
	assert.Nil(t, s.RemoveServer("nope"))
	assert.Nil(t, s.RemoveChannel("nope"))
	assert.Nil(t, s.RemoveMember("nope", "g1"))
	assert.Nil(t, s.RemoveRole("nope", "g1"))
	assert.Nil(t, s.RemoveMessage("nope"))
}

func TestRemoveServerCascades(t *testing.T) {
	s := NewStore()

	s.GetOrAddServer("g1")
	s.GetOrAddServer("g2")
	s.GetOrAddMember("u1", "g1")
	s.GetOrAddMember("u2", "g1")
	s.GetOrAddMember("u1", "g2")
	s.GetOrAddRole("r1", "g1")
	s.GetOrAddRole("r2", "g2")
	s.GetOrAddChannel("c1", "g1")
	s.GetOrAddChannel("c2", "g2")
	s.GetOrAddChannel("dm1", "") // private, no server scope
	s.GetOrAddUser("u1")

	removed := s.RemoveServer("g1")
	require.NotNil(t, removed)
	assert.Equal(t, "g1", removed.ID)

	_, servers, channels, members, roles, _ := s.Counts()
	assert.Equal(t, 1, servers)
	assert.Equal(t, 2, channels)
	assert.Equal(t, 1, members)
	assert.Equal(t, 1, roles)

	// The other server's scoped entities survive, and users are global.
	assert.NotNil(t, s.Member("u1", "g2"))
	assert.NotNil(t, s.Role("r2", "g2"))
	assert.NotNil(t, s.Channel("dm1"))
	assert.NotNil(t, s.User("u1"))
}

func TestRemapMessage(t *testing.T) {
	s := NewStore()

	m := s.GetOrAddMessage("pending:n1", "c1")
	m.Nonce = "n1"
	m.Text = "hello"

	got := s.RemapMessage("pending:n1", "m100")
	require.NotNil(t, got)
	assert.Same(t, m, got)
	assert.Equal(t, "m100", m.ID)

	// Exactly one entry remains, under the new key only.
	assert.Nil(t, s.Message("pending:n1"))
	assert.Same(t, m, s.Message("m100"))
	_, _, _, _, _, messages := s.Counts()
	assert.Equal(t, 1, messages)
}

func TestRemapMessageMissingOldKey(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.RemapMessage("pending:n1", "m100"))
}

func TestRemapMessageExistingTargetWins(t *testing.T) {
	s := NewStore()

	pending := s.GetOrAddMessage("pending:n1", "c1")
	pending.Text = "local copy"
	echoed := s.GetOrAddMessage("m100", "c1")
	echoed.Text = "server copy"

	got := s.RemapMessage("pending:n1", "m100")
	require.NotNil(t, got)
	assert.Same(t, echoed, got)
	assert.Equal(t, "server copy", got.Text)

	assert.Nil(t, s.Message("pending:n1"))
	_, _, _, _, _, messages := s.Counts()
	assert.Equal(t, 1, messages)
}

func TestMarkSentFlipsOnce(t *testing.T) {
	s := NewStore()

	m := s.GetOrAddMessage("m1", "c1")
	m.Queued = true

	got, won := s.MarkSent("m1")
	assert.Same(t, m, got)
	assert.True(t, won)
	assert.False(t, m.Queued)

	got, won = s.MarkSent("m1")
	assert.Same(t, m, got)
	assert.False(t, won)

	got, won = s.MarkSent("absent")
	assert.Nil(t, got)
	assert.False(t, won)
}

func TestMarkSentConcurrentSingleWinner(t *testing.T) {
	s := NewStore()
	m := s.GetOrAddMessage("m1", "c1")
	m.Queued = true

	var wg sync.WaitGroup
	wins := make([]bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, wins[i] = s.MarkSent("m1")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, w := range wins {
		if w {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.GetOrAddUser("u1")
	s.GetOrAddServer("g1")
	s.GetOrAddChannel("c1", "g1")
	s.GetOrAddMember("u1", "g1")
	s.GetOrAddRole("r1", "g1")
	s.GetOrAddMessage("m1", "c1")

	s.Clear()

	users, servers, channels, members, roles, messages := s.Counts()
	assert.Zero(t, users+servers+channels+members+roles+messages)
}

func TestUpdateSerializesFieldWrites(t *testing.T) {
	s := NewStore()
	ch := s.GetOrAddChannel("c1", "g1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func() { ch.Position++ })
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, ch.Position)
}
