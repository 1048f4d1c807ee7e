package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-classroom/backend/internal/classroom"
)

// Inbound event names.
const (
	EventIdentify             = "identify_user"
	EventJoin                 = "join_as_student"
	EventCreatePoll           = "create_poll"
	EventSubmitVote           = "submit_vote"
	EventEndPoll              = "end_poll"
	EventKickParticipant      = "kick_participant"
	EventGetPollHistory       = "get_poll_history"
	EventSendChatMessage      = "sendChatMessage"
	EventToggleChatPermission = "toggleChatPermission"
)

var (
	errUnknownEvent = errors.New("unknown event")
	errMissingData  = errors.New("missing event data")
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Options tunes the per-connection transport.
type Options struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	ReadLimit      int64
	SendBuffer     int
	AllowedOrigins []string // empty or "*" allows any origin
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    10 * time.Second,
		ReadLimit:    65536,
		SendBuffer:   256,
	}
}

// Client is one WebSocket connection to the classroom. It carries the role the connection
// declared and implements classroom.Peer.
type Client struct {
	id        string
	session   *classroom.Session
	conn      *websocket.Conn
	send      chan WSMessage
	done      chan struct{}
	closeOnce sync.Once
	opts      Options
	logger    *zap.Logger

	mu   sync.RWMutex
	role classroom.Role
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
func ServeWs(session *classroom.Session, logger *zap.Logger, opts Options) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := newClient(conn, session, logger, opts)
		session.Connect(client)
		go client.writePump()
		client.readPump()
	}
}

func newClient(conn *websocket.Conn, session *classroom.Session, logger *zap.Logger, opts Options) *Client {
	def := DefaultOptions()
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.PongWait <= 0 {
		opts.PongWait = def.PongWait
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = def.WriteWait
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = def.ReadLimit
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	return &Client{
		id:      id,
		session: session,
		conn:    conn,
		send:    make(chan WSMessage, opts.SendBuffer),
		done:    make(chan struct{}),
		opts:    opts,
		logger:  logger.With(zap.String("conn_id", id)),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// Deliver queues an event for the writer without blocking. It returns false if the connection
// is closed or its buffer is full.
func (c *Client) Deliver(event string, data json.RawMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
		return true
	default:
		return false
	}
}

// Close stops the writer and closes the socket. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Role returns the role the connection declared, or "" before identify_user.
func (c *Client) Role() classroom.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

func (c *Client) setRole(r classroom.Role) {
	c.mu.Lock()
	c.role = r
	c.mu.Unlock()
}

func (c *Client) actor() classroom.Actor {
	return classroom.Actor{ConnID: c.id, Role: c.Role()}
}

func (c *Client) readPump() {
	defer func() {
		c.session.Disconnect(c.id)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(c.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Debug("malformed message dropped", zap.Error(err))
			continue
		}
		if err := c.dispatch(msg); err != nil {
			c.logger.Debug("event dropped", zap.String("event", msg.Event), zap.Error(err))
		}
	}
}

// dispatch routes one inbound event to the session. Rejections are returned for logging only;
// the client never hears about them.
func (c *Client) dispatch(msg WSMessage) error {
	actor := c.actor()

	switch msg.Event {
	case EventIdentify:
		var raw string
		if err := decode(msg.Data, &raw); err != nil {
			return err
		}
		role, ok := classroom.ParseRole(raw)
		if !ok {
			return fmt.Errorf("unknown role %q", raw)
		}
		c.setRole(role)
		return nil

	case EventJoin:
		var name string
		if err := decode(msg.Data, &name); err != nil {
			return err
		}
		_, err := c.session.JoinOrRejoin(actor, name)
		return err

	case EventCreatePoll:
		var in classroom.PollInput
		if err := decode(msg.Data, &in); err != nil {
			return err
		}
		_, err := c.session.CreatePoll(actor, in)
		return err

	case EventSubmitVote:
		var in struct {
			OptionIndex *int `json:"optionIndex"`
		}
		if err := decode(msg.Data, &in); err != nil {
			return err
		}
		if in.OptionIndex == nil {
			return fmt.Errorf("%w: optionIndex", errMissingData)
		}
		return c.session.SubmitVote(actor, *in.OptionIndex)

	case EventEndPoll:
		_, err := c.session.EndPoll(actor)
		return err

	case EventKickParticipant:
		var name string
		if err := decode(msg.Data, &name); err != nil {
			return err
		}
		return c.session.Kick(actor, name)

	case EventGetPollHistory:
		c.session.SendHistory(actor)
		return nil

	case EventSendChatMessage:
		var in classroom.ChatInput
		if err := decode(msg.Data, &in); err != nil {
			return err
		}
		_, err := c.session.PostMessage(actor, in)
		return err

	case EventToggleChatPermission:
		_, err := c.session.ToggleChatPermission(actor)
		return err
	}
	return fmt.Errorf("%w: %q", errUnknownEvent, msg.Event)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errMissingData
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode event data: %w", err)
	}
	return nil
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		if len(set) == 0 || set["*"] {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
