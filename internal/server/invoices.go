package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
)

type lineItemRequest struct {
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Amount      int64  `json:"amount"`
}

type createInvoiceRequest struct {
	LeaseID       snowflake.ID      `json:"lease_id"`
	TenantID      snowflake.ID      `json:"tenant_id"`
	UnitID        snowflake.ID      `json:"unit_id"`
	InvoiceNumber string            `json:"invoice_number"`
	IssueDate     string            `json:"issue_date"`
	DueDate       string            `json:"due_date"`
	PeriodStart   string            `json:"period_start"`
	PeriodEnd     string            `json:"period_end"`
	Items         []lineItemRequest `json:"items"`
	TaxAmount     int64             `json:"tax_amount"`
	Notes         string            `json:"notes"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input := invoicedomain.CreateInvoiceInput{
		OrgID:         orgID,
		LeaseID:       req.LeaseID,
		TenantID:      req.TenantID,
		UnitID:        req.UnitID,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		TaxAmount:     req.TaxAmount,
		Notes:         req.Notes,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, invoicedomain.LineItemInput{
			Description: item.Description,
			Kind:        invoicedomain.ItemKind(item.Kind),
			Amount:      item.Amount,
		})
	}

	var err error
	if input.IssueDate, err = parseTime(req.IssueDate); err != nil {
		AbortWithError(c, newValidationError("issue_date", "invalid_time", "invalid issue date"))
		return
	}
	if input.DueDate, err = parseTime(req.DueDate); err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_time", "invalid due date"))
		return
	}
	if input.PeriodStart, err = parseTime(req.PeriodStart); err != nil {
		AbortWithError(c, newValidationError("period_start", "invalid_time", "invalid period start"))
		return
	}
	if input.PeriodEnd, err = parseTime(req.PeriodEnd); err != nil {
		AbortWithError(c, newValidationError("period_end", "invalid_time", "invalid period end"))
		return
	}

	item, err := s.invoiceSvc.Create(c.Request.Context(), input)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

type createRentInvoiceRequest struct {
	LeaseID     snowflake.ID `json:"lease_id"`
	IssueDate   string       `json:"issue_date"`
	DueDate     string       `json:"due_date"`
	PeriodStart string       `json:"period_start"`
	PeriodEnd   string       `json:"period_end"`
	TaxAmount   int64        `json:"tax_amount"`
	Notes       string       `json:"notes"`
}

func (s *Server) CreateRentInvoice(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createRentInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input := invoicedomain.RentInvoiceInput{
		OrgID:     orgID,
		LeaseID:   req.LeaseID,
		TaxAmount: req.TaxAmount,
		Notes:     req.Notes,
	}

	var err error
	if input.IssueDate, err = parseTime(req.IssueDate); err != nil {
		AbortWithError(c, newValidationError("issue_date", "invalid_time", "invalid issue date"))
		return
	}
	if input.DueDate, err = parseTime(req.DueDate); err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_time", "invalid due date"))
		return
	}
	if input.PeriodStart, err = parseTime(req.PeriodStart); err != nil {
		AbortWithError(c, newValidationError("period_start", "invalid_time", "invalid period start"))
		return
	}
	if input.PeriodEnd, err = parseTime(req.PeriodEnd); err != nil {
		AbortWithError(c, newValidationError("period_end", "invalid_time", "invalid period end"))
		return
	}

	item, err := s.invoiceSvc.CreateRentInvoice(c.Request.Context(), input)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

type updateInvoiceRequest struct {
	Items       *[]lineItemRequest `json:"items"`
	TaxAmount   *int64             `json:"tax_amount"`
	IssueDate   *string            `json:"issue_date"`
	DueDate     *string            `json:"due_date"`
	PeriodStart *string            `json:"period_start"`
	PeriodEnd   *string            `json:"period_end"`
	Notes       *string            `json:"notes"`
	Status      *string            `json:"status"`
	PaidAt      *string            `json:"paid_at"`
}

func (s *Server) UpdateInvoice(c *gin.Context) {
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

	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	patch := invoicedomain.UpdateInvoiceInput{
		TaxAmount: req.TaxAmount,
		Notes:     req.Notes,
	}
	if req.Items != nil {
		items := make([]invoicedomain.LineItemInput, 0, len(*req.Items))
		for _, item := range *req.Items {
			items = append(items, invoicedomain.LineItemInput{
				Description: item.Description,
				Kind:        invoicedomain.ItemKind(item.Kind),
				Amount:      item.Amount,
			})
		}
		patch.Items = &items
	}
	if req.Status != nil {
		status := invoicedomain.InvoiceStatus(*req.Status)
		patch.Status = &status
	}
	if patch.IssueDate, err = parseOptionalTime(deref(req.IssueDate)); err != nil {
		AbortWithError(c, newValidationError("issue_date", "invalid_time", "invalid issue date"))
		return
	}
	if patch.DueDate, err = parseOptionalTime(deref(req.DueDate)); err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_time", "invalid due date"))
		return
	}
	if patch.PeriodStart, err = parseOptionalTime(deref(req.PeriodStart)); err != nil {
		AbortWithError(c, newValidationError("period_start", "invalid_time", "invalid period start"))
		return
	}
	if patch.PeriodEnd, err = parseOptionalTime(deref(req.PeriodEnd)); err != nil {
		AbortWithError(c, newValidationError("period_end", "invalid_time", "invalid period end"))
		return
	}
	if patch.PaidAt, err = parseOptionalTime(deref(req.PaidAt)); err != nil {
		AbortWithError(c, newValidationError("paid_at", "invalid_time", "invalid paid at"))
		return
	}

	item, err := s.invoiceSvc.Update(c.Request.Context(), orgID, id, patch)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) CancelInvoice(c *gin.Context) {
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

	item, err := s.invoiceSvc.Cancel(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
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

	item, err := s.invoiceSvc.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListInvoices(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	req := invoicedomain.ListInvoiceRequest{OrgID: orgID}

	var err error
	if req.TenantID, err = parseOptionalSnowflakeID(c.Query("tenant_id")); err != nil {
		AbortWithError(c, newValidationError("tenant_id", "invalid_id", "invalid tenant id"))
		return
	}
	if req.LeaseID, err = parseOptionalSnowflakeID(c.Query("lease_id")); err != nil {
		AbortWithError(c, newValidationError("lease_id", "invalid_id", "invalid lease id"))
		return
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := invoicedomain.InvoiceStatus(raw)
		req.Status = &status
	}

	items, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
