package dto

import "github.com/ujmp/editorial-api/internal/models"

// InitiatePaymentRequest selects the gateway for a checkout hand-off.
type InitiatePaymentRequest struct {
	Provider models.PaymentProvider `json:"provider" binding:"required"`
}

// MarkPaidRequest is the admin override payload confirming payment manually.
type MarkPaidRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Note          string `json:"note"`
}

// RevokeCertificateRequest carries the mandatory revocation reason.
type RevokeCertificateRequest struct {
	Reason string `json:"reason" binding:"required"`
}
