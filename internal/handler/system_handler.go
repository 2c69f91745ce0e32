package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "IndieForge API"

// HealthResponse reports service and database status.
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`
	Service   string    `json:"service" example:"IndieForge API"`
	Database  string    `json:"database" example:"connected"`
	Timestamp time.Time `json:"timestamp"`
}

// Root godoc
// @Summary      API root
// @Tags         system
// @Produce      json
// @Success      200 {object} MessageResponse
// @Router       / [get]
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, MessageResponse{Message: "Welcome to the " + serviceName})
}

// Health godoc
// @Summary      Health check
// @Description  Pings the database.
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "healthy", Service: serviceName, Database: "connected", Timestamp: time.Now().UTC()}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.log.WithError(err).Error("health check: database unreachable")
		resp.Status = "unhealthy"
		resp.Database = "unreachable"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
