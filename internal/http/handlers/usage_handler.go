// Usage HTTP handler: GET /usage reports the owner's quota state and recent
// ledger entries.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shreyansh2912/prashnly-backend/internal/http/middleware"
)

// Usage returns the authenticated owner's plan, consumption counters, and
// the most recent usage records.
func (h *Handlers) Usage(c *gin.Context) {
	sum, err := h.usageSvc.Summary(c.Request.Context(), middleware.UserFrom(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, sum)
}
