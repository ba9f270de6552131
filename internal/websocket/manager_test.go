package websocket

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"memo-server/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(maxConns int) *Manager {
	return NewManager(maxConns, time.Second, time.Minute, 50*time.Second, nil)
}

func TestManager_BroadcastMemoEvent(t *testing.T) {
	m := newTestManager(5)
	c1 := NewClient("c1", nil, m)
	c2 := NewClient("c2", nil, m)
	require.True(t, m.Register(c1))
	require.True(t, m.Register(c2))

	updated := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	err := m.BroadcastMemoEvent(TypeMemoUpdated, &domain.Memo{ID: "m1", Content: "Title\nbody", UpdatedAt: updated})
	require.NoError(t, err)

	for _, c := range []*Client{c1, c2} {
		select {
		case raw := <-c.Send:
			var msg Message
			require.NoError(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, TypeMemoUpdated, msg.Type)

			var payload MemoEventPayload
			require.NoError(t, msg.UnmarshalPayload(&payload))
			assert.Equal(t, "m1", payload.MemoID)
			assert.Equal(t, "Title", payload.Title)
			assert.True(t, payload.UpdatedAt.Equal(updated))
		default:
			t.Fatalf("client %s received nothing", c.ID)
		}
	}
}

func TestManager_MaxConnections(t *testing.T) {
	m := newTestManager(1)
	require.True(t, m.Register(NewClient("c1", nil, m)))

	rejected := NewClient("c2", nil, m)
	assert.False(t, m.Register(rejected))
	assert.Equal(t, 1, m.ConnectionCount())

	_, open := <-rejected.Send
	assert.False(t, open)
}

func TestManager_DropsSlowClient(t *testing.T) {
	m := newTestManager(5)
	slow := &Client{ID: "slow", Manager: m, Send: make(chan []byte)}
	require.True(t, m.Register(slow))

	require.NoError(t, m.BroadcastMemoEvent(TypeMemoCreated, &domain.Memo{ID: "m1", Content: "x"}))
	assert.Equal(t, 0, m.ConnectionCount())
}

func TestManager_UnregisterTwice(t *testing.T) {
	m := newTestManager(5)
	c := NewClient("c1", nil, m)
	require.True(t, m.Register(c))

	m.Unregister(c)
	assert.NotPanics(t, func() { m.Unregister(c) })
	assert.Equal(t, 0, m.ConnectionCount())
}

func TestManager_Close(t *testing.T) {
	m := newTestManager(5)
	c := NewClient("c1", nil, m)
	require.True(t, m.Register(c))

	done := make(chan struct{})
	go func() {
		m.Run()
		close(done)
	}()

	m.Close()
	m.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	_, open := <-c.Send
	assert.False(t, open)
	assert.False(t, m.Register(NewClient("late", nil, m)))
}

type recordingHandler struct {
	got chan *Message
	err error
}

func (h *recordingHandler) HandleWebSocketMessage(client *Client, msg *Message) error {
	h.got <- msg
	return h.err
}

func TestManager_ProcessMessage(t *testing.T) {
	m := newTestManager(5)
	h := &recordingHandler{got: make(chan *Message, 1), err: errors.New("ignored")}
	m.SetMessageHandler(h)

	m.processMessage(&ClientMessage{Message: []byte(`{"type":"ping"}`)})
	msg := <-h.got
	assert.Equal(t, TypePing, msg.Type)

	m.processMessage(&ClientMessage{Message: []byte(`not json`)})
	assert.Len(t, h.got, 0)
}
