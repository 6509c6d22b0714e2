package handler

import (
	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// PlanHandler serves the public plan catalog.
type PlanHandler struct {
	catalog ports.PlanCatalog
}

func NewPlanHandler(catalog ports.PlanCatalog) *PlanHandler {
	return &PlanHandler{catalog: catalog}
}

// ListPlans handles GET /api/v1/plans.
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans, err := h.catalog.ListActivePlans(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, plans)
}
