package http

import (
	"errors"
	"net/http"

	"telecare/internal/core/domain"
	"telecare/internal/core/services"

	"github.com/gin-gonic/gin"
)

// MonitorHandler exposes the read-only session monitoring API and the
// recovery reset action used by operators after a session exhausts its retry
// budget.
type MonitorHandler struct {
	sessions *services.SessionService
}

func NewMonitorHandler(sessions *services.SessionService) *MonitorHandler {
	return &MonitorHandler{sessions: sessions}
}

// SetupRoutes registers the monitoring endpoints. Extra middleware applies to
// the API group only, so health probes stay unauthenticated.
func (h *MonitorHandler) SetupRoutes(router *gin.Engine, apiMiddleware ...gin.HandlerFunc) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	api.Use(apiMiddleware...)
	{
		api.GET("/sessions", h.ListSessions)
		api.GET("/sessions/:id", h.GetSession)
		api.POST("/sessions/:id/recovery/reset", h.ResetRecovery)
	}
}

func (h *MonitorHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": len(h.sessions.ListSessions()),
	})
}

func (h *MonitorHandler) ListSessions(c *gin.Context) {
	ids := h.sessions.ListSessions()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (h *MonitorHandler) GetSession(c *gin.Context) {
	id := domain.SessionID(c.Param("id"))

	engine, err := h.sessions.GetSession(id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": id,
		"state":      engine.State(),
		"quality":    engine.Quality(),
		"recovery":   engine.Recovery(),
		"roster":     engine.Roster(),
	})
}

func (h *MonitorHandler) ResetRecovery(c *gin.Context) {
	id := domain.SessionID(c.Param("id"))

	engine, err := h.sessions.GetSession(id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	engine.ResetRecovery()
	c.JSON(http.StatusOK, gin.H{
		"session_id": id,
		"recovery":   engine.Recovery(),
	})
}
