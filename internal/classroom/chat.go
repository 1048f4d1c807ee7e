package classroom

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-classroom/backend/internal/models"
)

// ChatInput is what a client sends to post a chat message.
type ChatInput struct {
	Message   string          `json:"message"`
	Sender    string          `json:"sender"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// PostMessage appends a chat message and relays it to everyone. Students are refused while chat
// is disabled; teachers may always post.
func (s *Session) PostMessage(actor Actor, in ChatInput) (models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !actor.IsTeacher() && !s.chatEnabled {
		return models.ChatMessage{}, ErrChatDisabled
	}
	msg := models.ChatMessage{
		ID:         uuid.New(),
		Message:    in.Message,
		Sender:     in.Sender,
		Timestamp:  in.Timestamp,
		SenderType: string(actor.Role),
	}
	s.chat = append(s.chat, msg)
	s.fanout.Broadcast(EventChatMessage, msg)
	s.journal.ChatPosted(msg)
	return msg, nil
}

// ToggleChatPermission flips whether students may chat. Teacher only.
func (s *Session) ToggleChatPermission(actor Actor) (bool, error) {
	if !actor.IsTeacher() {
		return false, ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chatEnabled = !s.chatEnabled
	s.logger.Info("chat permission changed", zap.Bool("enabled", s.chatEnabled))
	s.fanout.Broadcast(EventChatPermission, s.chatEnabled)
	return s.chatEnabled, nil
}
