package handler

import (
	"strconv"

	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/apperror"
	"yield-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const defaultHistoryDays = 30

// PortfolioHandler serves ledger history and valuation.
type PortfolioHandler struct {
	svc    ports.PortfolioService
	paging Paging
}

func NewPortfolioHandler(svc ports.PortfolioService, paging Paging) *PortfolioHandler {
	return &PortfolioHandler{svc: svc, paging: paging}
}

// Ledger handles GET /api/v1/ledger.
func (h *PortfolioHandler) Ledger(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	params := h.paging.params(c)
	entries, total, err := h.svc.ListLedger(c.Request.Context(), userID, params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, entries, params.Page, params.PageSize, total)
}

// History handles GET /api/v1/portfolio/history?days=N.
func (h *PortfolioHandler) History(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	days := defaultHistoryDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, apperror.Validation("days must be an integer"))
			return
		}
		days = n
	}

	history, err := h.svc.ReconstructHistory(c.Request.Context(), userID, days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, history)
}
