package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker is implemented by the document store.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates a handler for GET /health reporting store
// connectivity: 200 when reachable, 503 otherwise.
func NewHealthHandler(store HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		if err := store.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.Store = "disconnected"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}

		response.Status = "healthy"
		response.Store = "connected"
		c.JSON(http.StatusOK, response)
	}
}
