package realtime

import (
	"encoding/json"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/aura-classroom/backend/internal/classroom"
)

// Mirror receives a copy of every broadcast (e.g. Redis pub/sub for external observers).
// Publish must not block.
type Mirror interface {
	Publish(event string, data []byte)
}

// Hub tracks the live connections of the classroom and fans events out to them.
// It implements classroom.Fanout. Delivery is lossy: a peer whose buffer is full misses the event.
type Hub struct {
	peers  map[string]classroom.Peer
	mu     sync.RWMutex
	logger *zap.Logger
	mirror Mirror
}

// NewHub creates a hub. mirror may be nil.
func NewHub(logger *zap.Logger, mirror Mirror) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		peers:  make(map[string]classroom.Peer),
		logger: logger,
		mirror: mirror,
	}
}

// Attach adds a peer. A peer with the same ID is replaced.
func (h *Hub) Attach(p classroom.Peer) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	count := len(h.peers)
	h.mu.Unlock()
	h.logger.Debug("peer attached", zap.String("conn_id", p.ID()), zap.Int("peers", count))
}

// Detach removes a peer. Unknown IDs are ignored.
func (h *Hub) Detach(id string) {
	h.mu.Lock()
	delete(h.peers, id)
	count := len(h.peers)
	h.mu.Unlock()
	h.logger.Debug("peer detached", zap.String("conn_id", id), zap.Int("peers", count))
}

// Broadcast sends an event to every attached peer and hands it to the mirror.
func (h *Hub) Broadcast(event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Error("encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	peers := make([]classroom.Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		if !p.Deliver(event, data) {
			h.logger.Debug("dropped event for slow peer", zap.String("event", event), zap.String("conn_id", p.ID()))
		}
	}
	if h.mirror != nil {
		h.mirror.Publish(event, data)
	}
}

// SendTo sends an event to a single peer, if it is attached.
func (h *Hub) SendTo(id string, event string, payload interface{}) {
	h.mu.RLock()
	p, ok := h.peers[id]
	h.mu.RUnlock()
	if !ok {
		return
	}

	data, err := encode(payload)
	if err != nil {
		h.logger.Error("encode direct message", zap.String("event", event), zap.Error(err))
		return
	}
	if !p.Deliver(event, data) {
		h.logger.Debug("dropped event for slow peer", zap.String("event", event), zap.String("conn_id", id))
	}
}

// PeerCount returns the number of attached peers.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// CloseAll closes every attached peer that supports closing. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	peers := make([]classroom.Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		if c, ok := p.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// encode marshals a payload once for all recipients. A nil payload yields no data.
func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
