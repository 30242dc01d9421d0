package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/internal/service"
	appErrors "github.com/ujmp/editorial-api/pkg/errors"
	"github.com/ujmp/editorial-api/pkg/response"
)

// SignatureHeader carries the provider's HMAC over the raw request body.
const SignatureHeader = "X-Signature"

// WebhookHandler receives payment gateway callbacks. Routes here are
// unauthenticated; the HMAC signature is the only trust anchor.
type WebhookHandler struct {
	payments *service.PaymentService
	metrics  *service.MetricsService
}

// NewWebhookHandler constructs WebhookHandler.
func NewWebhookHandler(payments *service.PaymentService, metrics *service.MetricsService) *WebhookHandler {
	return &WebhookHandler{payments: payments, metrics: metrics}
}

// Payment godoc
// @Summary Process a payment gateway webhook
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param provider path string true "Gateway (payme or click)"
// @Param X-Signature header string true "HMAC-SHA256 hex over the raw body"
// @Success 200 {object} response.Envelope
// @Router /webhooks/payments/{provider} [post]
func (h *WebhookHandler) Payment(c *gin.Context) {
	provider := models.PaymentProvider(strings.ToUpper(c.Param("provider")))

	body, err := c.GetRawData()
	if err != nil {
		h.record(provider, "error")
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable body"))
		return
	}

	result, err := h.payments.ProcessWebhook(c.Request.Context(), provider, body, c.GetHeader(SignatureHeader))
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrSignatureInvalid) {
			h.record(provider, "rejected")
		} else {
			h.record(provider, "error")
		}
		response.Error(c, err)
		return
	}

	switch {
	case result.AlreadyProcessed:
		h.record(provider, "duplicate")
	case result.Confirmed:
		h.record(provider, "confirmed")
	default:
		h.record(provider, "recorded")
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *WebhookHandler) record(provider models.PaymentProvider, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordWebhook(provider, outcome)
	}
}
