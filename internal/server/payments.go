package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
)

type createPaymentRequest struct {
	TenantID        snowflake.ID   `json:"tenant_id"`
	InvoiceID       *snowflake.ID  `json:"invoice_id"`
	Amount          int64          `json:"amount"`
	Method          string         `json:"method"`
	PaymentDate     string         `json:"payment_date"`
	ReferenceNumber string         `json:"reference_number"`
	Status          string         `json:"status"`
	Notes           string         `json:"notes"`
	Metadata        map[string]any `json:"metadata"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input := paymentdomain.CreatePaymentInput{
		OrgID:           orgID,
		TenantID:        req.TenantID,
		InvoiceID:       req.InvoiceID,
		Amount:          req.Amount,
		Method:          paymentdomain.Method(req.Method),
		ReferenceNumber: req.ReferenceNumber,
		Status:          paymentdomain.PaymentStatus(req.Status),
		Notes:           req.Notes,
		Metadata:        req.Metadata,
	}

	var err error
	if input.PaymentDate, err = parseTime(req.PaymentDate); err != nil {
		AbortWithError(c, newValidationError("payment_date", "invalid_time", "invalid payment date"))
		return
	}

	item, err := s.paymentSvc.Create(c.Request.Context(), input)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

type updatePaymentRequest struct {
	Amount      *int64  `json:"amount"`
	Method      *string `json:"method"`
	PaymentDate *string `json:"payment_date"`
	Status      *string `json:"status"`
	Notes       *string `json:"notes"`
}

func (s *Server) UpdatePayment(c *gin.Context) {
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

	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	patch := paymentdomain.UpdatePaymentInput{
		Amount: req.Amount,
		Notes:  req.Notes,
	}
	if req.Method != nil {
		method := paymentdomain.Method(*req.Method)
		patch.Method = &method
	}
	if req.Status != nil {
		status := paymentdomain.PaymentStatus(*req.Status)
		patch.Status = &status
	}
	if patch.PaymentDate, err = parseOptionalTime(deref(req.PaymentDate)); err != nil {
		AbortWithError(c, newValidationError("payment_date", "invalid_time", "invalid payment date"))
		return
	}

	item, err := s.paymentSvc.Update(c.Request.Context(), orgID, id, patch)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) RefundPayment(c *gin.Context) {
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

	item, err := s.paymentSvc.Refund(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) GetPaymentByID(c *gin.Context) {
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

	item, err := s.paymentSvc.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListPayments(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	req := paymentdomain.ListPaymentRequest{OrgID: orgID}

	var err error
	if req.TenantID, err = parseOptionalSnowflakeID(c.Query("tenant_id")); err != nil {
		AbortWithError(c, newValidationError("tenant_id", "invalid_id", "invalid tenant id"))
		return
	}
	if req.InvoiceID, err = parseOptionalSnowflakeID(c.Query("invoice_id")); err != nil {
		AbortWithError(c, newValidationError("invoice_id", "invalid_id", "invalid invoice id"))
		return
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := paymentdomain.PaymentStatus(raw)
		req.Status = &status
	}

	items, err := s.paymentSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
