package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/streamlink/chatcore/internal/core"
	"github.com/streamlink/chatcore/internal/proto"
)

const maxMessagesLimit = 200

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionSummary is one live session in API responses.
type SessionSummary struct {
	SessionID   string `json:"sessionId"`
	Connections int    `json:"connections"`
}

// NoticeRequest represents the system notice request body.
type NoticeRequest struct {
	Content string `json:"content" binding:"required,max=4096"`
}

// SessionHandlers exposes read access to sessions for operators.
type SessionHandlers struct {
	hub          *core.Hub
	historyLimit int
	log          *zerolog.Logger
}

// NewSessionHandlers creates a new session handlers instance.
func NewSessionHandlers(hub *core.Hub, historyLimit int, logger *zerolog.Logger) *SessionHandlers {
	if historyLimit <= 0 {
		historyLimit = core.DefaultHistoryLimit
	}
	return &SessionHandlers{hub: hub, historyLimit: historyLimit, log: logger}
}

// ListSessions lists sessions with live connections.
// GET /api/sessions
func (h *SessionHandlers) ListSessions(c *gin.Context) {
	sessions := h.hub.Sessions()
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionSummary{SessionID: s.Session, Connections: s.Connections})
	}
	c.JSON(http.StatusOK, out)
}

// Participants returns the merged roster of a session.
// GET /api/sessions/:sessionId/participants
func (h *SessionHandlers) Participants(c *gin.Context) {
	session := c.Param("sessionId")
	c.JSON(http.StatusOK, participantViews(h.hub.Roster(c.Request.Context(), session)))
}

// Messages returns recent persisted messages of a session, oldest first.
// GET /api/sessions/:sessionId/messages?limit=N
func (h *SessionHandlers) Messages(c *gin.Context) {
	session := c.Param("sessionId")

	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxMessagesLimit)
	}

	messages, err := h.hub.RecentMessages(c.Request.Context(), session, limit)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", session).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]proto.MessageView, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageView(m))
	}
	c.JSON(http.StatusOK, out)
}

// PostNotice broadcasts a system message to a session.
// POST /api/sessions/:sessionId/notices
func (h *SessionHandlers) PostNotice(c *gin.Context) {
	session := c.Param("sessionId")

	var req NoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
		return
	}

	msg := h.hub.SystemNotice(session, strings.TrimSpace(req.Content))
	h.log.Info().
		Str("session_id", session).
		Str("username", c.GetString(ContextKeyUsername)).
		Msg("system notice sent")
	c.JSON(http.StatusCreated, messageView(msg))
}
