package handler

import (
	"log/slog"
	"net/http"

	"smartcity/internal/service"

	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	statsService *service.StatsService
	logger       *slog.Logger
}

func NewStatsHandler(statsService *service.StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{statsService: statsService, logger: logger}
}

func (h *StatsHandler) Admin(c *gin.Context) {
	admin, ok := sessionUser(c)
	if !ok {
		return
	}

	stats, err := h.statsService.Admin(c.Request.Context(), admin)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *StatsHandler) User(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	stats, err := h.statsService.User(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
