package classroom

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-classroom/backend/pkg/response"
)

// Handler exposes read-only session state over HTTP.
type Handler struct {
	session *Session
}

// NewHandler creates a classroom HTTP handler.
func NewHandler(session *Session) *Handler {
	return &Handler{session: session}
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	response.OK(c, gin.H{"status": "Server is running"})
}

// Snapshot handles GET /api/session.
func (h *Handler) Snapshot(c *gin.Context) {
	response.OK(c, h.session.Snapshot())
}

// History handles GET /api/polls/history.
func (h *Handler) History(c *gin.Context) {
	response.OK(c, gin.H{"polls": h.session.History()})
}
