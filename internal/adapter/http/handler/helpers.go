package handler

import (
	"strconv"

	"yield-ledger/internal/adapter/http/middleware"
	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/apperror"
	"yield-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Paging bounds list queries.
type Paging struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultPaging is used when no pagination config is supplied.
var DefaultPaging = Paging{DefaultLimit: 10, MaxLimit: 100}

// params reads page and limit from the query string. Out-of-range limits
// fall back to the default.
func (p Paging) params(c *gin.Context) ports.ListParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(p.DefaultLimit)))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > p.MaxLimit {
		limit = p.DefaultLimit
	}
	return ports.ListParams{Page: page, PageSize: limit}
}

// callerID returns the authenticated user or writes a 401.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses the :id path parameter or writes a 404.
func pathID(c *gin.Context, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound(entity))
		return uuid.Nil, false
	}
	return id, true
}

// bind decodes and validates the JSON body, then sanitizes it.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}
