package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records successful administrator writes. Routes are matched on
// their registered pattern so path parameters become the resource id.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var actorID *uuid.UUID
		if id, ok := UserID(c); ok {
			actorID = &id
		}

		resourceID := c.Param("id")
		if resourceID == "" {
			resourceID = c.Param("currency")
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	if method != http.MethodPost {
		return "", ""
	}
	switch route {
	case "/api/v1/admin/investments/:id/verify":
		return domain.AuditActionVerifyInvestment, "investment"
	case "/api/v1/admin/investments/:id/cancel":
		return domain.AuditActionCancelInvestment, "investment"
	case "/api/v1/admin/withdrawals/:id/approve":
		return domain.AuditActionApproveWithdrawal, "withdrawal"
	case "/api/v1/admin/withdrawals/:id/reject":
		return domain.AuditActionRejectWithdrawal, "withdrawal"
	case "/api/v1/admin/sweep", "/internal/sweep":
		return domain.AuditActionRunSweep, "sweep"
	case "/api/v1/admin/rates/:currency/invalidate":
		return domain.AuditActionInvalidateRate, "rate"
	}
	return "", ""
}
