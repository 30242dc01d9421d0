package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ujmp/editorial-api/internal/dto"
	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/internal/service"
	appErrors "github.com/ujmp/editorial-api/pkg/errors"
	"github.com/ujmp/editorial-api/pkg/response"
)

// InvoiceHandler exposes APC invoice and payment endpoints.
type InvoiceHandler struct {
	payments *service.PaymentService
}

// NewInvoiceHandler constructs InvoiceHandler.
func NewInvoiceHandler(payments *service.PaymentService) *InvoiceHandler {
	return &InvoiceHandler{payments: payments}
}

// List godoc
// @Summary List invoices visible to the caller
// @Tags Invoices
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	claims := claimsFromContext(c)
	invoices, err := h.payments.ListInvoices(c.Request.Context(), claims.UserID, claims.Role, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, nil)
}

// Get godoc
// @Summary Get an invoice with its payment attempts
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	invoice, payments, err := h.payments.GetInvoice(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"invoice": invoice, "payments": payments}, nil)
}

// GetForArticle godoc
// @Summary Get the invoice attached to an article
// @Tags Invoices
// @Produce json
// @Param id path string true "Article ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /articles/{id}/invoice [get]
func (h *InvoiceHandler) GetForArticle(c *gin.Context) {
	claims := claimsFromContext(c)
	invoice, err := h.payments.GetInvoiceForArticle(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Initiate godoc
// @Summary Start checkout for a pending invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body dto.InitiatePaymentRequest true "Provider selection"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invoices/{id}/pay [post]
func (h *InvoiceHandler) Initiate(c *gin.Context) {
	var req dto.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	provider := models.PaymentProvider(strings.ToUpper(string(req.Provider)))

	claims := claimsFromContext(c)
	initiation, err := h.payments.InitiatePayment(c.Request.Context(), c.Param("id"), provider, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, initiation, nil)
}

// MarkPaid godoc
// @Summary Manually confirm an invoice as paid (admin override)
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body dto.MarkPaidRequest true "Manual confirmation"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invoices/{id}/mark-paid [post]
func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	var req dto.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	actor := claims.UserID
	invoice, err := h.payments.MarkAsPaid(c.Request.Context(), c.Param("id"), models.ProviderManual, req.TransactionID, &actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}
