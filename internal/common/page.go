package common

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// Page reads skip/limit query params, clamping limit to (0, 500].
func Page(c *gin.Context) (skip, limit int) {
	skip, _ = strconv.Atoi(c.Query("skip"))
	if skip < 0 {
		skip = 0
	}
	limit, _ = strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return skip, limit
}

// List is the paginated list payload.
type List[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Skip  int   `json:"skip"`
	Limit int   `json:"limit"`
}
