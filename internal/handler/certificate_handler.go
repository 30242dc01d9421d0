package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ujmp/editorial-api/internal/dto"
	"github.com/ujmp/editorial-api/internal/service"
	appErrors "github.com/ujmp/editorial-api/pkg/errors"
	"github.com/ujmp/editorial-api/pkg/response"
)

// CertificateHandler exposes certificate issuance, download and the public
// verification endpoint.
type CertificateHandler struct {
	certificates *service.CertificateService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// Issue godoc
// @Summary Issue the certificate for a published article
// @Tags Certificates
// @Produce json
// @Param id path string true "Article ID"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /articles/{id}/certificate [post]
func (h *CertificateHandler) Issue(c *gin.Context) {
	certificate, err := h.certificates.IssueForArticle(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, certificate)
}

// Download godoc
// @Summary Download the certificate PDF
// @Tags Certificates
// @Produce application/pdf
// @Param certificateId path string true "Public certificate ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /certificates/{certificateId}/pdf [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	certificate, err := h.certificates.GetPDF(c.Request.Context(), c.Param("certificateId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", certificate.CertificateID))
	c.Data(http.StatusOK, "application/pdf", certificate.PDFFile)
}

// Verify godoc
// @Summary Verify a certificate by its public ID
// @Tags Certificates
// @Produce json
// @Param certificateId path string true "Public certificate ID"
// @Success 200 {object} response.Envelope
// @Router /certificates/{certificateId}/verify [get]
func (h *CertificateHandler) Verify(c *gin.Context) {
	verification, err := h.certificates.Verify(c.Request.Context(), c.Param("certificateId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, verification, nil)
}

// Revoke godoc
// @Summary Revoke a certificate
// @Tags Certificates
// @Accept json
// @Produce json
// @Param certificateId path string true "Public certificate ID"
// @Param payload body dto.RevokeCertificateRequest true "Revocation reason"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /certificates/{certificateId}/revoke [post]
func (h *CertificateHandler) Revoke(c *gin.Context) {
	var req dto.RevokeCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	certificate, err := h.certificates.Revoke(c.Request.Context(), c.Param("certificateId"), claims.UserID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificate, nil)
}
