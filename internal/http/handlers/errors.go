package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tinhptlocal/credit-bot/internal/faults"
)

// respondError maps fault kinds to HTTP statuses and renders the
// snake_case error code plus any structured details. Unclassified
// errors become an opaque 500 so internals never leak.
func respondError(c *gin.Context, err error) {
	kind := faults.KindOf(err)
	if kind == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	status := http.StatusInternalServerError
	switch kind {
	case faults.Validation:
		status = http.StatusBadRequest
	case faults.InsufficientFunds:
		status = http.StatusPaymentRequired
	case faults.Unauthorized:
		status = http.StatusForbidden
	case faults.NotFound:
		status = http.StatusNotFound
	case faults.Conflict:
		status = http.StatusConflict
	}

	body := gin.H{"error": faults.CodeOf(err), "message": err.Error()}
	if details := faults.DetailsOf(err); len(details) > 0 {
		body["details"] = details
	}
	c.JSON(status, body)
}

func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}
