package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	id     string
	full   bool
	mu     sync.Mutex
	got    []WSMessage
	closed bool
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Deliver(event string, data json.RawMessage) bool {
	if p.full {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, WSMessage{Event: event, Data: data})
	return true
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) messages() []WSMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]WSMessage(nil), p.got...)
}

type fakeMirror struct {
	mu     sync.Mutex
	events []string
	data   [][]byte
}

func (m *fakeMirror) Publish(event string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	m.data = append(m.data, data)
}

func TestHubBroadcastSkipsFullPeers(t *testing.T) {
	mirror := &fakeMirror{}
	hub := NewHub(nil, mirror)
	fast := &fakePeer{id: "fast"}
	slow := &fakePeer{id: "slow", full: true}
	hub.Attach(fast)
	hub.Attach(slow)

	hub.Broadcast("participants_updated", []string{"Alice"})

	msgs := fast.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "participants_updated", msgs[0].Event)
	assert.JSONEq(t, `["Alice"]`, string(msgs[0].Data))
	assert.Empty(t, slow.messages())

	assert.Equal(t, []string{"participants_updated"}, mirror.events)
	assert.JSONEq(t, `["Alice"]`, string(mirror.data[0]))
}

func TestHubSendToSinglePeer(t *testing.T) {
	hub := NewHub(nil, nil)
	a := &fakePeer{id: "a"}
	b := &fakePeer{id: "b"}
	hub.Attach(a)
	hub.Attach(b)

	hub.SendTo("b", "kicked_out", nil)
	hub.SendTo("missing", "kicked_out", nil)

	assert.Empty(t, a.messages())
	msgs := b.messages()
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].Data)
}

func TestHubDetachAndCount(t *testing.T) {
	hub := NewHub(nil, nil)
	a := &fakePeer{id: "a"}
	hub.Attach(a)
	hub.Attach(&fakePeer{id: "b"})
	assert.Equal(t, 2, hub.PeerCount())

	hub.Detach("a")
	hub.Detach("unknown")
	assert.Equal(t, 1, hub.PeerCount())

	hub.Broadcast("chatPermission", false)
	assert.Empty(t, a.messages())
}

func TestHubCloseAll(t *testing.T) {
	hub := NewHub(nil, nil)
	a := &fakePeer{id: "a"}
	hub.Attach(a)

	hub.CloseAll()
	assert.True(t, a.closed)
}

func TestEncode(t *testing.T) {
	data, err := encode(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	raw := json.RawMessage(`{"a":1}`)
	data, err = encode(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, data)

	data, err = encode(true)
	require.NoError(t, err)
	assert.Equal(t, "true", string(data))

	_, err = encode(make(chan int))
	assert.Error(t, err)
}
