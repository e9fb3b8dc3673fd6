package handlers

import (
	"net/http"

	"galamsey-report-backend/internal/middleware"
	"galamsey-report-backend/internal/models"
	"galamsey-report-backend/internal/validation"
	"github.com/gin-gonic/gin"
)

// currentUser writes a 401 and returns false when the auth middleware did not
// run.
func currentUser(c *gin.Context) (string, bool) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return "", false
	}
	return userID.(string), true
}

func respondViolation(c *gin.Context, v *validation.Violation) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation failed",
		Message: v.Message,
		Code:    string(v.Code),
	})
}
