package archive

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-classroom/backend/internal/models"
	"github.com/aura-classroom/backend/pkg/response"
	"github.com/aura-classroom/backend/pkg/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Reader is the read side of the archive used by the HTTP handler. *Repository implements it.
type Reader interface {
	ListPolls(ctx context.Context, limit int) ([]models.ArchivedPoll, error)
	GetPoll(ctx context.Context, id uuid.UUID) (*models.ArchivedPoll, error)
	ListAttendance(ctx context.Context, limit int) ([]models.AttendanceLog, error)
}

// ReportLinker signs download links for uploaded reports. *storage.S3 implements it.
type ReportLinker interface {
	PresignedDownloadURL(ctx context.Context, key string) (string, error)
}

// Handler serves the archive over HTTP. A nil reader means the archive is disabled.
type Handler struct {
	reader Reader
	linker ReportLinker
}

// NewHandler creates an archive handler. Either argument may be nil.
func NewHandler(reader Reader, linker ReportLinker) *Handler {
	return &Handler{reader: reader, linker: linker}
}

// ListPolls handles GET /api/archive/polls?limit=N.
func (h *Handler) ListPolls(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	list, err := h.reader.ListPolls(c.Request.Context(), limit)
	if err != nil {
		response.Internal(c, "failed to list archived polls")
		return
	}
	response.OK(c, gin.H{"polls": list})
}

// GetPoll handles GET /api/archive/polls/:id.
func (h *Handler) GetPoll(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	response.OK(c, p)
}

// ReportURL handles GET /api/archive/polls/:id/report and returns a signed download link.
func (h *Handler) ReportURL(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	if h.linker == nil {
		response.ServiceUnavailable(c, "report storage is not configured")
		return
	}
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	if p.ReportURL == nil {
		response.NotFound(c, "report not generated yet")
		return
	}
	url, err := h.linker.PresignedDownloadURL(c.Request.Context(), storage.ReportKey(p.ID.String()))
	if err != nil {
		response.Internal(c, "failed to sign report url")
		return
	}
	response.OK(c, gin.H{"url": url})
}

// ListAttendance handles GET /api/archive/attendance?limit=N.
func (h *Handler) ListAttendance(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	list, err := h.reader.ListAttendance(c.Request.Context(), limit)
	if err != nil {
		response.Internal(c, "failed to list attendance")
		return
	}
	response.OK(c, gin.H{"attendance": list})
}

func (h *Handler) enabled(c *gin.Context) bool {
	if h.reader == nil {
		response.ServiceUnavailable(c, "archive is not configured")
		return false
	}
	return true
}

func (h *Handler) lookup(c *gin.Context) (*models.ArchivedPoll, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return nil, false
	}
	p, err := h.reader.GetPoll(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "poll not found")
		return nil, false
	}
	if err != nil {
		response.Internal(c, "failed to load poll")
		return nil, false
	}
	return p, true
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		response.BadRequest(c, "limit must be a positive integer")
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}
