package handler

import (
	"strings"

	"yield-ledger/internal/adapter/http/dto"
	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/apperror"
	"yield-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles administrator and machine-triggered operations.
type AdminHandler struct {
	investments ports.InvestmentService
	approvals   ports.ApprovalService
	sweep       ports.SweepService
	rates       ports.RateOracle
	paging      Paging
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	investments ports.InvestmentService,
	approvals ports.ApprovalService,
	sweep ports.SweepService,
	rates ports.RateOracle,
	paging Paging,
) *AdminHandler {
	return &AdminHandler{
		investments: investments,
		approvals:   approvals,
		sweep:       sweep,
		rates:       rates,
		paging:      paging,
	}
}

// VerifyInvestment handles POST /api/v1/admin/investments/:id/verify.
func (h *AdminHandler) VerifyInvestment(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Investment")
	if !ok {
		return
	}

	var req dto.VerifyInvestmentRequest
	if !bind(c, &req) {
		return
	}
	confirmed, err := dto.ParseDecimal(req.ConfirmedAmountCrypto)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	inv, err := h.investments.VerifyAndActivate(c.Request.Context(), ports.VerifyInvestmentRequest{
		AdminID:               adminID,
		InvestmentID:          id,
		ConfirmedAmountCrypto: confirmed,
		ConfirmedTxRef:        req.ConfirmedTxRef,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, inv)
}

// CancelInvestment handles POST /api/v1/admin/investments/:id/cancel.
func (h *AdminHandler) CancelInvestment(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Investment")
	if !ok {
		return
	}

	var req dto.ReasonRequest
	if !bind(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	inv, err := h.investments.CancelPending(c.Request.Context(), adminID, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, inv)
}

// ListWithdrawals handles GET /api/v1/admin/withdrawals?status=.
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	var status *domain.WithdrawalStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.WithdrawalStatus(strings.ToUpper(raw))
		if !s.Valid() {
			response.Error(c, apperror.Validation("unknown withdrawal status: "+raw))
			return
		}
		status = &s
	}

	params := h.paging.params(c)
	items, total, err := h.approvals.ListQueue(c.Request.Context(), status, params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, params.Page, params.PageSize, total)
}

// ApproveWithdrawal handles POST /api/v1/admin/withdrawals/:id/approve.
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Withdrawal")
	if !ok {
		return
	}

	var req dto.ApproveWithdrawalRequest
	if !bind(c, &req) {
		return
	}

	w, err := h.approvals.Approve(c.Request.Context(), adminID, id, req.PlatformTxRef)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, w)
}

// RejectWithdrawal handles POST /api/v1/admin/withdrawals/:id/reject.
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Withdrawal")
	if !ok {
		return
	}

	var req dto.ReasonRequest
	if !bind(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	w, err := h.approvals.Reject(c.Request.Context(), adminID, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, w)
}

// RunSweep handles POST /api/v1/admin/sweep and POST /internal/sweep.
// Per-investment failures are reported in the body; only a failure to list
// due investments is an error response.
func (h *AdminHandler) RunSweep(c *gin.Context) {
	report, err := h.sweep.Run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// InvalidateRate handles POST /api/v1/admin/rates/:currency/invalidate.
func (h *AdminHandler) InvalidateRate(c *gin.Context) {
	currency := strings.ToUpper(strings.TrimSpace(c.Param("currency")))
	if currency == "" {
		response.Error(c, apperror.Validation("currency is required"))
		return
	}
	if err := h.rates.Invalidate(c.Request.Context(), currency); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"currency": currency, "invalidated": true})
}
