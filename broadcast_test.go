package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestBroadcastPrunesFailedSend(t *testing.T) {
	r, _ := newTestRegistry(t, testRegistryConfig())
	good, bad := &fakeTransport{}, &fakeTransport{fail: true}
	_, err := r.Join("room-a", "alice", good, false)
	require.NoError(t, err)
	_, err = r.Join("room-a", "bob", bad, false)
	require.NoError(t, err)

	snap, err := r.Snapshot("room-a")
	require.NoError(t, err)
	r.dispatch.BroadcastState("room-a", snap)

	assert.Len(t, good.ofType(t, MsgGameState), 1)
	assert.True(t, bad.isClosed())
	members := r.Members("room-a")
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].PlayerID)

	r.dispatch.BroadcastState("room-a", snap)
	assert.Len(t, good.ofType(t, MsgGameState), 2, "remaining members keep receiving")
}

func TestBroadcastEncodings(t *testing.T) {
	r, _ := newTestRegistry(t, testRegistryConfig())
	text, bin := &fakeTransport{}, &fakeTransport{}
	_, err := r.Join("room-a", "alice", text, false)
	require.NoError(t, err)
	_, err = r.Join("room-a", "bob", bin, true)
	require.NoError(t, err)

	snap, err := r.Snapshot("room-a")
	require.NoError(t, err)
	r.dispatch.BroadcastState("room-a", snap)

	frames := text.ofType(t, MsgGameState)
	require.Len(t, frames, 1)
	assert.Contains(t, frames[0], "ball")
	assert.Contains(t, frames[0], "paddle")
	assert.Contains(t, frames[0], "alpha")
	assert.Empty(t, text.bin)

	require.Len(t, bin.bin, 1)
	var msg GameStateMsg
	require.NoError(t, msgpack.Unmarshal(bin.bin[0], &msg))
	assert.Equal(t, MsgGameState, msg.Type)
	assert.Len(t, msg.Paddle, 2)
	assert.Equal(t, PhaseCountdown, msg.State.Phase)
	assert.Equal(t, 800.0, msg.Config.Width)
}

func TestBroadcastEndReason(t *testing.T) {
	r, _ := newTestRegistry(t, testRegistryConfig())
	tr := &fakeTransport{}
	_, err := r.Join("room-a", "alice", tr, false)
	require.NoError(t, err)

	r.dispatch.BroadcastEnd("room-a", MatchOutcome{Winner: SideRight, Score: Score{Left: 1, Right: 5}})
	ends := tr.ofType(t, MsgGameEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, "right", ends[0]["winner"])
	assert.NotContains(t, ends[0], "reason")
	assert.Equal(t, map[string]any{"left": 1.0, "right": 5.0}, ends[0]["score"])
}

func TestBroadcastUnknownRoomIsNoop(t *testing.T) {
	r, _ := newTestRegistry(t, testRegistryConfig())
	assert.NotPanics(t, func() {
		r.dispatch.BroadcastState("ghost", Snapshot{})
		r.dispatch.BroadcastEnd("ghost", MatchOutcome{})
	})
}
