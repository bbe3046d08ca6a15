package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alfaashh/P2PChat"
)

func TestMockNode_Connect(t *testing.T) {
	m := NewMockNode(8888)
	ctx := context.Background()

	id, err := m.Connect(ctx, "10.0.0.2", 9000)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2:9000", id)
	assert.Equal(t, []string{"10.0.0.2:9000"}, m.Connected())

	_, err = m.Connect(ctx, "", 9000)
	assert.ErrorIs(t, err, p2pchat.ErrInvalidAddress)
	_, err = m.Connect(ctx, "10.0.0.2", 0)
	assert.ErrorIs(t, err, p2pchat.ErrInvalidPort)

	boom := errors.New("boom")
	m.SetConnectError(boom)
	_, err = m.Connect(ctx, "10.0.0.3", 9000)
	assert.ErrorIs(t, err, boom)
}

func TestMockNode_SendMessage(t *testing.T) {
	m := NewMockNode(8888)
	ctx := context.Background()

	m.RequirePeers(true)
	_, err := m.SendMessage(ctx, "hi", "ann")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = m.Connect(ctx, "10.0.0.2", 9000)
	require.NoError(t, err)
	res, err := m.SendMessage(ctx, "hi", "ann")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.2:9000"}, res.Delivered)
	assert.NoError(t, res.Err())

	sent := m.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "hi", sent[0].Message)
	assert.Equal(t, "ann", sent[0].DisplayName)

	m.Reset()
	assert.Empty(t, m.SentMessages())
	assert.Empty(t, m.Connected())
}

func TestMockNode_SimulateMessage(t *testing.T) {
	m := NewMockNode(8888)
	assert.NotEmpty(t, m.PublicKey())
	assert.Equal(t, 8888, m.Port())

	assert.False(t, m.SimulateMessage("10.0.0.2:9000", p2pchat.Payload{"message": "x"}))

	var got string
	m.OnMessage(func(identity string, payload p2pchat.Payload) {
		got = identity + " " + payload.Message()
	})
	assert.True(t, m.SimulateMessage("10.0.0.2:9000", p2pchat.Payload{"message": "x"}))
	assert.Equal(t, "10.0.0.2:9000 x", got)
}
