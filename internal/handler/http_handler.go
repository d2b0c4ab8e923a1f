package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/itstarun264/eventsnap-stream/internal/service"
	"github.com/itstarun264/eventsnap-stream/pkg/log"
	"github.com/itstarun264/eventsnap-stream/pkg/response"
)

// HTTPHandler serves the read-only HTTP surface: room diagnostics and the
// live event list.
type HTTPHandler struct {
	service service.StreamService
}

func NewHTTPHandler(svc service.StreamService) *HTTPHandler {
	return &HTTPHandler{service: svc}
}

// GetRoomDiagnostics handles GET /debug/rooms/:event_id
func (h *HTTPHandler) GetRoomDiagnostics(c *gin.Context) {
	eventID := c.Param("event_id")
	if eventID == "" {
		response.BadRequest(c, "event_id is required")
		return
	}

	report := h.service.Diagnostics(c.Request.Context(), eventID)
	response.Success(c, report)
}

// ListLiveEvents handles GET /api/v1/streams/live
func (h *HTTPHandler) ListLiveEvents(c *gin.Context) {
	events, err := h.service.ListLiveEvents(c.Request.Context())
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("failed to list live events")
		response.InternalError(c, "failed to list live events")
		return
	}
	response.Success(c, events)
}

// Health handles GET /health
func (h *HTTPHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
