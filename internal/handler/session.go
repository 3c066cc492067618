package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/guildkit/ticketd/internal/model"
	"github.com/guildkit/ticketd/internal/store"
)

// SessionHandler is the operator read API over sessions and transcripts.
type SessionHandler struct {
	store store.Store
	botID string
}

func NewSessionHandler(st store.Store, botID string) *SessionHandler {
	return &SessionHandler{store: st, botID: botID}
}

func (h *SessionHandler) List(c *gin.Context) {
	guildID := c.Query("guild_id")
	status := model.SessionStatus(c.Query("status"))

	limit := 0
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	items, total, err := h.store.ListSessions(c.Request.Context(), h.botID, guildID, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": items,
		"total":    total,
	})
}

func (h *SessionHandler) Get(c *gin.Context) {
	guildID := c.Query("guild_id")
	if guildID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "guild_id is required"})
		return
	}
	sess, err := h.store.SessionByThread(c.Request.Context(), h.botID, guildID, c.Param("thread_id"))
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) GetTranscript(c *gin.Context) {
	guildID := c.Query("guild_id")
	if guildID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "guild_id is required"})
		return
	}
	t, err := h.store.TranscriptByThread(c.Request.Context(), h.botID, guildID, c.Param("thread_id"))
	if err != nil {
		if errors.Is(err, store.ErrTranscriptNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transcript not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}
