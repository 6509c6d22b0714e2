package handler

import (
	"time"

	"yield-ledger/internal/adapter/http/dto"
	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/apperror"
	"yield-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WithdrawalHandler handles the investor-facing withdrawal endpoints.
type WithdrawalHandler struct {
	svc    ports.WithdrawalService
	paging Paging
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(svc ports.WithdrawalService, paging Paging) *WithdrawalHandler {
	return &WithdrawalHandler{svc: svc, paging: paging}
}

// Balance handles GET /api/v1/withdrawals/balance.
func (h *WithdrawalHandler) Balance(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	balance, err := h.svc.EligibleBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BalanceResponse{EligibleBalanceUSD: balance, AsOf: time.Now().UTC()})
}

// Request handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Request(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.CreateWithdrawalRequest
	if !bind(c, &req) {
		return
	}
	amount, err := dto.ParseDecimal(req.AmountUSD)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	w, err := h.svc.Request(c.Request.Context(), ports.WithdrawalRequest{
		UserID:        userID,
		AmountUSD:     amount,
		Currency:      req.Currency,
		Pin:           req.Pin,
		PayoutAddress: req.PayoutAddress,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, w)
}

// List handles GET /api/v1/withdrawals.
func (h *WithdrawalHandler) List(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	params := h.paging.params(c)
	items, total, err := h.svc.List(c.Request.Context(), userID, params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, params.Page, params.PageSize, total)
}

// Cancel handles POST /api/v1/withdrawals/:id/cancel.
func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Withdrawal")
	if !ok {
		return
	}

	var req dto.CancelWithdrawalRequest
	if c.Request.ContentLength > 0 {
		if !bind(c, &req) {
			return
		}
		dto.SanitizeStruct(&req)
	}

	w, err := h.svc.Cancel(c.Request.Context(), userID, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, w)
}
