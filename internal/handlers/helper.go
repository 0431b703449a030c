package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// parseUUIDParam extracts a UUID path parameter, responding with 400
// and returning uuid.Nil on a malformed value.
func parseUUIDParam(c *gin.Context, param string) uuid.UUID {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "expected a UUID",
		})
		return uuid.Nil
	}
	return id
}
