package handler

import (
	"yield-ledger/internal/adapter/http/dto"
	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/apperror"
	"yield-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InvestmentHandler handles the investor-facing investment endpoints.
type InvestmentHandler struct {
	svc    ports.InvestmentService
	paging Paging
}

// NewInvestmentHandler creates a new InvestmentHandler.
func NewInvestmentHandler(svc ports.InvestmentService, paging Paging) *InvestmentHandler {
	return &InvestmentHandler{svc: svc, paging: paging}
}

// Create handles POST /api/v1/investments.
func (h *InvestmentHandler) Create(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.CreateInvestmentRequest
	if !bind(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Plan"))
		return
	}
	amount, err := dto.ParseDecimal(req.AmountUSD)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.svc.Create(c.Request.Context(), ports.CreateInvestmentRequest{
		UserID:    userID,
		PlanID:    planID,
		AmountUSD: amount,
		Currency:  req.Currency,
		UserTxRef: req.UserTxRef,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.CreateInvestmentResponse{
		Investment:          result.Investment,
		PaymentInstructions: result.Instructions,
	})
}

// List handles GET /api/v1/investments.
func (h *InvestmentHandler) List(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	params := h.paging.params(c)
	views, total, err := h.svc.List(c.Request.Context(), userID, params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, dto.ToInvestmentResponses(views), params.Page, params.PageSize, total)
}

// Get handles GET /api/v1/investments/:id.
func (h *InvestmentHandler) Get(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Investment")
	if !ok {
		return
	}

	view, err := h.svc.Get(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToInvestmentResponse(*view))
}

// SubmitTxRef handles PUT /api/v1/investments/:id/tx-ref.
func (h *InvestmentHandler) SubmitTxRef(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Investment")
	if !ok {
		return
	}

	var req dto.SubmitTxRefRequest
	if !bind(c, &req) {
		return
	}

	inv, err := h.svc.SubmitUserTxRef(c.Request.Context(), userID, id, req.TxRef)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, inv)
}
