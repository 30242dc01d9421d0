package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/internal/repository"
	"github.com/ujmp/editorial-api/internal/workflow"
	"github.com/ujmp/editorial-api/pkg/certpdf"
	appErrors "github.com/ujmp/editorial-api/pkg/errors"
)

type certificateStore interface {
	Create(ctx context.Context, cert *models.Certificate) error
	GetByArticle(ctx context.Context, articleID string) (*models.Certificate, error)
	GetByCertificateID(ctx context.Context, certificateID string) (*models.Certificate, error)
	SavePDF(ctx context.Context, id string, pdf []byte) error
	Revoke(ctx context.Context, params repository.RevokeParams) error
}

type certificateRenderer interface {
	Render(data certpdf.CertificateData) ([]byte, error)
}

// CertificateConfig carries issuance settings.
type CertificateConfig struct {
	IssuerName          string
	VerificationBaseURL string
}

// CertificateVerification is the public verification answer. It exposes no
// internal identifiers beyond what is printed on the certificate itself.
type CertificateVerification struct {
	CertificateID   string                   `json:"certificate_id"`
	Valid           bool                     `json:"valid"`
	Status          models.CertificateStatus `json:"status"`
	ArticleTitle    string                   `json:"article_title"`
	JournalID       string                   `json:"journal_id"`
	IssuedAt        time.Time                `json:"issued_at"`
	PublicationDate *time.Time               `json:"publication_date,omitempty"`
}

// CertificateService issues and revokes publication certificates.
type CertificateService struct {
	certificates certificateStore
	articles     articleStore
	journals     journalReader
	audit        auditWriter
	events       eventPublisher
	renderer     certificateRenderer
	metrics      transitionRecorder
	cfg          CertificateConfig
	logger       *zap.Logger
}

// WithMetrics attaches a transition counter. Optional.
func (s *CertificateService) WithMetrics(metrics transitionRecorder) *CertificateService {
	s.metrics = metrics
	return s
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(certificates certificateStore, articles articleStore, journals journalReader, audit auditWriter, events eventPublisher, renderer certificateRenderer, cfg CertificateConfig, logger *zap.Logger) *CertificateService {
	if renderer == nil {
		renderer = certpdf.NewRenderer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		certificates: certificates,
		articles:     articles,
		journals:     journals,
		audit:        audit,
		events:       events,
		renderer:     renderer,
		cfg:          cfg,
		logger:       logger,
	}
}

// IssueForArticle creates the certificate for a published article, renders
// the PDF and moves the article to its terminal status. Re-invocation after a
// partial failure converges: the existing certificate is returned and the
// remaining steps retried.
func (s *CertificateService) IssueForArticle(ctx context.Context, articleID string) (*models.Certificate, error) {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "article not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load article")
	}
	if article.Status == models.StatusCertificateIssued {
		cert, err := s.certificates.GetByArticle(ctx, articleID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing certificate")
		}
		return cert, nil
	}
	if !workflow.CanIssueCertificate(article.Status) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificates are only issued for published articles")
	}

	cert := &models.Certificate{ArticleID: articleID}
	if err := s.certificates.Create(ctx, cert); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			existing, getErr := s.certificates.GetByArticle(ctx, articleID)
			if getErr != nil {
				return nil, appErrors.Wrap(getErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload certificate")
			}
			cert = existing
		} else {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate")
		}
	}

	if len(cert.PDFFile) == 0 {
		pdf, err := s.renderPDF(ctx, article, cert)
		if err != nil {
			return nil, err
		}
		if err := s.certificates.SavePDF(ctx, cert.ID, pdf); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate pdf")
		}
		cert.PDFFile = pdf
	}

	err = s.articles.UpdateStatus(ctx, repository.UpdateStatusParams{
		ID:   article.ID,
		From: models.StatusPublished,
		To:   models.StatusCertificateIssued,
	})
	switch {
	case err == nil:
		article.Status = models.StatusCertificateIssued
		if s.metrics != nil {
			s.metrics.RecordTransition(models.StatusPublished, models.StatusCertificateIssued)
		}
		s.emitAudit(ctx, nil, models.AuditActionStatusChange, models.EntityArticle, article.ID,
			map[string]string{"from": string(models.StatusPublished), "to": string(models.StatusCertificateIssued)})
	case errors.Is(err, sql.ErrNoRows):
		// Another issuance already moved the article; the certificate row is
		// shared either way.
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "certificate stored but article status update failed")
	}

	s.emitAudit(ctx, nil, models.AuditActionCertificateIssued, models.EntityCertificate, cert.ID,
		map[string]string{"article_id": article.ID, "certificate_id": cert.CertificateID})
	if s.events != nil {
		s.events.Publish(models.DomainEvent{
			Kind:          models.EventCertificateReady,
			ArticleID:     article.ID,
			CertificateID: cert.ID,
		})
	}
	return cert, nil
}

func (s *CertificateService) renderPDF(ctx context.Context, article *models.Article, cert *models.Certificate) ([]byte, error) {
	journalName := ""
	if journal, err := s.journals.GetByID(ctx, article.JournalID); err == nil {
		journalName = journal.Name
	}
	published := time.Now().UTC()
	if article.PublicationDate != nil {
		published = *article.PublicationDate
	}
	verificationURL := ""
	if s.cfg.VerificationBaseURL != "" {
		verificationURL = strings.TrimRight(s.cfg.VerificationBaseURL, "/") + "/" + cert.CertificateID
	}
	pdf, err := s.renderer.Render(certpdf.CertificateData{
		CertificateID:   cert.CertificateID,
		IssuerName:      s.cfg.IssuerName,
		ArticleTitle:    article.Title,
		AuthorNames:     authorNames(article.Authors),
		JournalName:     journalName,
		SubmissionID:    article.SubmissionID,
		PublicationDate: published,
		VerificationURL: verificationURL,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate pdf")
	}
	return pdf, nil
}

// Revoke permanently invalidates a certificate. The article's status is left
// alone; revocation only affects verification.
func (s *CertificateService) Revoke(ctx context.Context, certificateID, actorID, reason string) (*models.Certificate, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "revocation reason is required")
	}
	cert, err := s.certificates.GetByCertificateID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	now := time.Now().UTC()
	err = s.certificates.Revoke(ctx, repository.RevokeParams{
		ID:        cert.ID,
		RevokedBy: actorID,
		Reason:    reason,
		RevokedAt: now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate already revoked")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke certificate")
	}
	cert.Status = models.CertificateRevoked
	cert.RevokedAt = &now
	cert.RevokedBy = &actorID
	cert.RevocationReason = reason

	s.emitAudit(ctx, &actorID, models.AuditActionCertificateRevoked, models.EntityCertificate, cert.ID,
		map[string]string{"certificate_id": cert.CertificateID, "reason": reason})
	return cert, nil
}

// Verify answers the public verification endpoint by certificate id.
func (s *CertificateService) Verify(ctx context.Context, certificateID string) (*CertificateVerification, error) {
	cert, err := s.certificates.GetByCertificateID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	verification := &CertificateVerification{
		CertificateID: cert.CertificateID,
		Valid:         cert.Status == models.CertificateActive,
		Status:        cert.Status,
		IssuedAt:      cert.IssuedAt,
	}
	if article, err := s.articles.GetByID(ctx, cert.ArticleID); err == nil {
		verification.ArticleTitle = article.Title
		verification.JournalID = article.JournalID
		verification.PublicationDate = article.PublicationDate
	}
	return verification, nil
}

// GetPDF returns the rendered document for download.
func (s *CertificateService) GetPDF(ctx context.Context, certificateID string) (*models.Certificate, error) {
	cert, err := s.certificates.GetByCertificateID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if len(cert.PDFFile) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate pdf not available")
	}
	return cert, nil
}

func (s *CertificateService) emitAudit(ctx context.Context, actorID *string, action, entityType, entityID string, metadata map[string]string) {
	payload, err := json.Marshal(metadata)
	if err != nil {
		payload = []byte("{}")
	}
	log := &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   payload,
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

func authorNames(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var authors []struct {
		FullName string `json:"full_name"`
	}
	if err := json.Unmarshal(raw, &authors); err != nil {
		return ""
	}
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.FullName != "" {
			names = append(names, a.FullName)
		}
	}
	return strings.Join(names, ", ")
}
