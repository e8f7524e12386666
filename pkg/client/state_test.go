package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestState(t *testing.T) *State {
	t.Helper()
	state, err := OpenState(filepath.Join(t.TempDir(), "state", "voxhall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })
	return state
}

func TestStateConfigRoundTrip(t *testing.T) {
	state := openTestState(t)

	value, err := state.GetConfig("missing")
	require.NoError(t, err)
	assert.Equal(t, "", value)

	require.NoError(t, state.SetConfig("theme", "dark"))
	require.NoError(t, state.SetConfig("theme", "light"))

	value, err = state.GetConfig("theme")
	require.NoError(t, err)
	assert.Equal(t, "light", value)
}

func TestStateTokens(t *testing.T) {
	state := openTestState(t)

	token, err := state.GetToken("a@b.test")
	require.NoError(t, err)
	assert.Equal(t, "", token)

	require.NoError(t, state.SetToken("a@b.test", "tok-1"))
	require.NoError(t, state.SetToken("c@d.test", "tok-2"))

	token, err = state.GetToken("a@b.test")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestStateGatewayURL(t *testing.T) {
	state := openTestState(t)

	url, err := state.GetGatewayURL()
	require.NoError(t, err)
	assert.Equal(t, "", url)

	require.NoError(t, state.SetGatewayURL("wss://gateway.voxhall.net"))
	url, err = state.GetGatewayURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://gateway.voxhall.net", url)
}

func TestStateReadState(t *testing.T) {
	state := openTestState(t)

	last, err := state.GetReadState("c1")
	require.NoError(t, err)
	assert.Equal(t, "", last)

	require.NoError(t, state.UpdateReadState("c1", "m1"))
	require.NoError(t, state.UpdateReadState("c1", "m2"))
	require.NoError(t, state.UpdateReadState("c2", "m9"))

	last, err = state.GetReadState("c1")
	require.NoError(t, err)
	assert.Equal(t, "m2", last)
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxhall.db")

	state, err := OpenState(path)
	require.NoError(t, err)
	require.NoError(t, state.SetToken("a@b.test", "tok-1"))
	require.NoError(t, state.Close())

	state, err = OpenState(path)
	require.NoError(t, err)
	defer state.Close()

	token, err := state.GetToken("a@b.test")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}
