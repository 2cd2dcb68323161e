package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	intentdomain "github.com/smallbiznis/tenancy/internal/paymentintent/domain"
)

type createPaymentIntentRequest struct {
	TenantID  snowflake.ID  `json:"tenant_id"`
	InvoiceID *snowflake.ID `json:"invoice_id"`
	Amount    int64         `json:"amount"`
	Currency  string        `json:"currency"`
	Provider  string        `json:"provider"`
	Phone     string        `json:"phone"`
	Email     string        `json:"email"`
}

func (s *Server) CreatePaymentIntent(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createPaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.intentSvc.CreateAndInitiate(c.Request.Context(), intentdomain.CreateIntentInput{
		OrgID:     orgID,
		TenantID:  req.TenantID,
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Provider:  req.Provider,
		Phone:     req.Phone,
		Email:     req.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) GetPaymentIntentByID(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	item, err := s.intentSvc.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListPaymentIntents(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	req := intentdomain.ListIntentRequest{OrgID: orgID}

	var err error
	if req.TenantID, err = parseOptionalSnowflakeID(c.Query("tenant_id")); err != nil {
		AbortWithError(c, newValidationError("tenant_id", "invalid_id", "invalid tenant id"))
		return
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := intentdomain.IntentStatus(raw)
		req.Status = &status
	}

	items, err := s.intentSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
