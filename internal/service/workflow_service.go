package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/internal/repository"
	"github.com/ujmp/editorial-api/internal/workflow"
	appErrors "github.com/ujmp/editorial-api/pkg/errors"
)

type articleStore interface {
	GetByID(ctx context.Context, id string) (*models.Article, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error
	SetPaymentStatus(ctx context.Context, articleID string, payment models.PaymentStatus) error
}

type versionStore interface {
	Create(ctx context.Context, version *models.ArticleVersion) error
	MaxVersionNumber(ctx context.Context, articleID string) (int, error)
}

type reviewStore interface {
	Create(ctx context.Context, review *models.Review) error
}

type invoiceCreator interface {
	GetOrCreateForArticle(ctx context.Context, articleID string, amount float64, currency string) (*models.Invoice, bool, error)
}

type journalReader interface {
	GetByID(ctx context.Context, id string) (*models.Journal, error)
}

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type eventPublisher interface {
	Publish(event models.DomainEvent)
}

type transitionRecorder interface {
	RecordTransition(from, to models.ArticleStatus)
}

// WorkflowService owns every article status change. Status is never written
// outside transitionStatus, which consults the workflow edge table and applies
// the change conditionally on the status it validated against.
type WorkflowService struct {
	articles articleStore
	versions versionStore
	reviews  reviewStore
	invoices invoiceCreator
	journals journalReader
	audit    auditWriter
	events   eventPublisher
	metrics  transitionRecorder
	logger   *zap.Logger
}

// WithMetrics attaches a transition counter. Optional.
func (s *WorkflowService) WithMetrics(metrics transitionRecorder) *WorkflowService {
	s.metrics = metrics
	return s
}

// NewWorkflowService constructs WorkflowService.
func NewWorkflowService(articles articleStore, versions versionStore, reviews reviewStore, invoices invoiceCreator, journals journalReader, audit auditWriter, events eventPublisher, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		articles: articles,
		versions: versions,
		reviews:  reviews,
		invoices: invoices,
		journals: journals,
		audit:    audit,
		events:   events,
		logger:   logger,
	}
}

type transitionRequest struct {
	article *models.Article
	actorID *string
	role    models.UserRole
	// requested is validated against the edge table; applied is the status
	// actually written, which differs only on submission auto-advance.
	requested       models.ArticleStatus
	applied         models.ArticleStatus
	setSubmittedAt  bool
	publicationURL  *string
	publicationDate *time.Time
}

// transitionStatus is the single guarded path for status writes. The update
// is conditional on the status the guard validated; losing that race surfaces
// as a retryable conflict instead of a silent double transition.
func (s *WorkflowService) transitionStatus(ctx context.Context, req transitionRequest) error {
	from := req.article.Status
	if workflow.IsTerminal(from) {
		return appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("article is in terminal status %s", from))
	}
	if !workflow.CanTransition(from, req.requested, req.role) {
		return appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("transition %s -> %s not allowed for role %s", from, req.requested, req.role))
	}
	applied := req.applied
	if applied == "" {
		applied = req.requested
	}

	err := s.articles.UpdateStatus(ctx, repository.UpdateStatusParams{
		ID:              req.article.ID,
		From:            from,
		To:              applied,
		SetSubmittedAt:  req.setSubmittedAt,
		PublicationURL:  req.publicationURL,
		PublicationDate: req.publicationDate,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "article status changed concurrently, please retry")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update article status")
	}
	req.article.Status = applied
	if s.metrics != nil {
		s.metrics.RecordTransition(from, applied)
	}

	metadata := map[string]string{"from": string(from), "to": string(applied)}
	if applied != req.requested {
		metadata["requested"] = string(req.requested)
	}
	s.emitAudit(ctx, req.actorID, models.AuditActionStatusChange, models.EntityArticle, req.article.ID, metadata)
	return nil
}

// emitAudit appends an audit record. Audit failures are logged and never fail
// the operation that already committed.
func (s *WorkflowService) emitAudit(ctx context.Context, actorID *string, action, entityType, entityID string, metadata map[string]string) {
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

func (s *WorkflowService) publish(event models.DomainEvent) {
	if s.events == nil {
		return
	}
	s.events.Publish(event)
}

func (s *WorkflowService) loadArticle(ctx context.Context, id string) (*models.Article, error) {
	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "article not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load article")
	}
	return article, nil
}

// UploadInitialManuscript stores version 1 for a draft. It performs no status
// transition; submission stays a separate explicit step.
func (s *WorkflowService) UploadInitialManuscript(ctx context.Context, articleID, actorID, manuscriptFile, notes string) (*models.ArticleVersion, error) {
	if strings.TrimSpace(manuscriptFile) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "manuscript file is required")
	}
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article.CorrespondingAuthorID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the corresponding author can upload the manuscript")
	}
	if article.Status != models.StatusDraft {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "manuscript can only be uploaded while the article is a draft")
	}
	max, err := s.versions.MaxVersionNumber(ctx, articleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing versions")
	}
	if max > 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "manuscript already uploaded, submit a revision instead")
	}
	version := &models.ArticleVersion{
		ArticleID:      articleID,
		VersionNumber:  1,
		ManuscriptFile: manuscriptFile,
		RevisionType:   models.RevisionInitial,
		Notes:          notes,
		CreatedBy:      actorID,
	}
	if err := s.versions.Create(ctx, version); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "manuscript version already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store manuscript version")
	}
	return version, nil
}

// Submit moves a complete draft into the pipeline. The author-triggered edge
// is DRAFT -> SUBMITTED; the stored status auto-advances to DESK_CHECK so the
// editorial queue picks it up without a second call.
func (s *WorkflowService) Submit(ctx context.Context, articleID, actorID string, role models.UserRole) (*models.Article, error) {
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article.CorrespondingAuthorID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the corresponding author can submit the article")
	}
	if article.Status != models.StatusDraft {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "only draft articles can be submitted")
	}
	if strings.TrimSpace(article.Title) == "" || strings.TrimSpace(article.Abstract) == "" {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "title and abstract are required before submission")
	}
	if !article.EthicsDeclaration || !article.OriginalityDeclaration {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "ethics and originality declarations must be accepted")
	}
	max, err := s.versions.MaxVersionNumber(ctx, articleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check manuscript versions")
	}
	if max == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "a manuscript must be uploaded before submission")
	}

	if err := s.transitionStatus(ctx, transitionRequest{
		article:        article,
		actorID:        &actorID,
		role:           role,
		requested:      models.StatusSubmitted,
		applied:        models.StatusDeskCheck,
		setSubmittedAt: true,
	}); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, &actorID, models.AuditActionArticleSubmitted, models.EntityArticle, article.ID,
		map[string]string{"submission_id": article.SubmissionID})
	s.publish(models.DomainEvent{Kind: models.EventArticleSubmitted, ArticleID: article.ID})
	return article, nil
}

// DeskReject rejects an article before peer review. A review row records the
// editorial decision so the author sees the reasoning in one place.
func (s *WorkflowService) DeskReject(ctx context.Context, articleID, actorID string, role models.UserRole, comments string) (*models.Article, error) {
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article.Status != models.StatusSubmitted && article.Status != models.StatusDeskCheck {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "desk rejection only applies before peer review")
	}
	if err := s.transitionStatus(ctx, transitionRequest{
		article:   article,
		actorID:   &actorID,
		role:      role,
		requested: models.StatusRejected,
	}); err != nil {
		return nil, err
	}
	if comments == "" {
		comments = "Desk rejected"
	}
	s.recordDecision(ctx, article.ID, actorID, models.RecommendReject, comments)
	s.publish(models.DomainEvent{Kind: models.EventArticleRejected, ArticleID: article.ID})
	return article, nil
}

// SendToReview moves an article from desk check into peer review.
func (s *WorkflowService) SendToReview(ctx context.Context, articleID, actorID string, role models.UserRole) (*models.Article, error) {
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := s.transitionStatus(ctx, transitionRequest{
		article:   article,
		actorID:   &actorID,
		role:      role,
		requested: models.StatusUnderReview,
	}); err != nil {
		return nil, err
	}
	return article, nil
}

// RequestRevision asks the author for a minor or major revision. The reviewer
// decision is recorded alongside the transition.
func (s *WorkflowService) RequestRevision(ctx context.Context, articleID, actorID string, role models.UserRole, revisionType models.RevisionType, comments string) (*models.Article, error) {
	if revisionType != models.RevisionMinor && revisionType != models.RevisionMajor {
		return nil, appErrors.Clone(appErrors.ErrValidation, "revision type must be MINOR or MAJOR")
	}
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := s.transitionStatus(ctx, transitionRequest{
		article:   article,
		actorID:   &actorID,
		role:      role,
		requested: models.StatusRevisionRequired,
	}); err != nil {
		return nil, err
	}
	s.recordDecision(ctx, article.ID, actorID, models.RecommendRevise, comments)
	s.publish(models.DomainEvent{
		Kind:      models.EventRevisionRequested,
		ArticleID: article.ID,
		Params:    map[string]string{"revision_type": string(revisionType)},
	})
	return article, nil
}

// SubmitRevision stores the next manuscript version and automatically returns
// the article to peer review. The return edge is a SYSTEM edge; a failure
// there after the version insert is an internal inconsistency, not a caller
// mistake.
func (s *WorkflowService) SubmitRevision(ctx context.Context, articleID, actorID, manuscriptFile, notes string) (*models.ArticleVersion, error) {
	if strings.TrimSpace(manuscriptFile) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "manuscript file is required")
	}
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article.CorrespondingAuthorID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the corresponding author can submit a revision")
	}
	if article.Status != models.StatusRevisionRequired {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "revisions are only accepted while a revision is required")
	}
	max, err := s.versions.MaxVersionNumber(ctx, articleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check manuscript versions")
	}
	version := &models.ArticleVersion{
		ArticleID:      articleID,
		VersionNumber:  max + 1,
		ManuscriptFile: manuscriptFile,
		RevisionType:   models.RevisionMinor,
		Notes:          notes,
		CreatedBy:      actorID,
	}
	if err := s.versions.Create(ctx, version); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a revision with this version number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store manuscript version")
	}

	if err := s.transitionStatus(ctx, transitionRequest{
		article:   article,
		actorID:   nil,
		role:      models.RoleSystem,
		requested: models.StatusUnderReview,
	}); err != nil {
		s.logger.Error("automatic return to review failed after revision upload",
			zap.String("article_id", articleID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "revision stored but article could not return to review")
	}
	return version, nil
}

// Accept marks an article accepted and opens the billing track: journals with
// a nonzero APC get a pending invoice, free journals settle immediately with
// NOT_REQUIRED. The scientific status never waits on billing.
func (s *WorkflowService) Accept(ctx context.Context, articleID, actorID string, role models.UserRole, comments string) (*models.Article, error) {
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	journal, err := s.journals.GetByID(ctx, article.JournalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "journal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load journal")
	}

	if err := s.transitionStatus(ctx, transitionRequest{
		article:   article,
		actorID:   &actorID,
		role:      role,
		requested: models.StatusAccepted,
	}); err != nil {
		return nil, err
	}
	if comments == "" {
		comments = "Article accepted"
	}
	s.recordDecision(ctx, article.ID, actorID, models.RecommendAccept, comments)

	event := models.DomainEvent{Kind: models.EventArticleAccepted, ArticleID: article.ID}
	if journal.RequiresAPC() {
		invoice, created, err := s.invoices.GetOrCreateForArticle(ctx, article.ID, journal.APCAmount, journal.Currency)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "article accepted but invoice creation failed")
		}
		event.InvoiceID = invoice.ID
		if created {
			if err := s.articles.SetPaymentStatus(ctx, article.ID, models.PaymentPending); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "article accepted but payment status update failed")
			}
			article.PaymentStatus = models.PaymentPending
		}
	} else {
		if err := s.articles.SetPaymentStatus(ctx, article.ID, models.PaymentNotRequired); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "article accepted but payment status update failed")
		}
		article.PaymentStatus = models.PaymentNotRequired
	}

	s.publish(event)
	return article, nil
}

// Reject rejects an article after peer review.
func (s *WorkflowService) Reject(ctx context.Context, articleID, actorID string, role models.UserRole, comments string) (*models.Article, error) {
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := s.transitionStatus(ctx, transitionRequest{
		article:   article,
		actorID:   &actorID,
		role:      role,
		requested: models.StatusRejected,
	}); err != nil {
		return nil, err
	}
	if comments == "" {
		comments = "Article rejected"
	}
	s.recordDecision(ctx, article.ID, actorID, models.RecommendReject, comments)
	s.publish(models.DomainEvent{Kind: models.EventArticleRejected, ArticleID: article.ID})
	return article, nil
}

// MoveToProduction advances an accepted article into production. The payment
// gate lives here, not in the edge table: the table answers status legality,
// the service answers business readiness.
func (s *WorkflowService) MoveToProduction(ctx context.Context, articleID, actorID string, role models.UserRole) (*models.Article, error) {
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if !workflow.PaymentSettled(article.PaymentStatus) {
		return nil, appErrors.Clone(appErrors.ErrPaymentRequired, "payment must be confirmed before production")
	}
	if err := s.transitionStatus(ctx, transitionRequest{
		article:   article,
		actorID:   &actorID,
		role:      role,
		requested: models.StatusProduction,
	}); err != nil {
		return nil, err
	}
	return article, nil
}

// Schedule queues a production article for a future publication slot.
func (s *WorkflowService) Schedule(ctx context.Context, articleID, actorID string, role models.UserRole) (*models.Article, error) {
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := s.transitionStatus(ctx, transitionRequest{
		article:   article,
		actorID:   &actorID,
		role:      role,
		requested: models.StatusScheduled,
	}); err != nil {
		return nil, err
	}
	return article, nil
}

// Publish makes the article public. The payment gate is re-checked here even
// though production already required it; an admin override could have moved
// the article without settling the invoice.
func (s *WorkflowService) Publish(ctx context.Context, articleID, actorID string, role models.UserRole, publicationURL string, publicationDate *time.Time) (*models.Article, error) {
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if !workflow.PaymentSettled(article.PaymentStatus) {
		return nil, appErrors.Clone(appErrors.ErrPaymentRequired, "payment must be confirmed before publication")
	}
	if publicationURL == "" {
		journal, err := s.journals.GetByID(ctx, article.JournalID)
		if err == nil && journal.PublicationBaseURL != "" {
			publicationURL = strings.TrimRight(journal.PublicationBaseURL, "/") + "/" + article.SubmissionID
		}
	}
	if publicationURL == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "publication url is required")
	}
	when := time.Now().UTC()
	if publicationDate != nil {
		when = *publicationDate
	}

	if err := s.transitionStatus(ctx, transitionRequest{
		article:         article,
		actorID:         &actorID,
		role:            role,
		requested:       models.StatusPublished,
		publicationURL:  &publicationURL,
		publicationDate: &when,
	}); err != nil {
		return nil, err
	}
	article.PublicationURL = &publicationURL
	article.PublicationDate = &when

	s.emitAudit(ctx, &actorID, models.AuditActionArticlePublished, models.EntityArticle, article.ID,
		map[string]string{"publication_url": publicationURL})
	s.publish(models.DomainEvent{Kind: models.EventArticlePublished, ArticleID: article.ID})
	return article, nil
}

// Archive closes out a rejected article.
func (s *WorkflowService) Archive(ctx context.Context, articleID, actorID string, role models.UserRole) (*models.Article, error) {
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := s.transitionStatus(ctx, transitionRequest{
		article:   article,
		actorID:   &actorID,
		role:      role,
		requested: models.StatusArchived,
	}); err != nil {
		return nil, err
	}
	return article, nil
}

// AllowedActions exposes the statuses the caller may move the article to.
func (s *WorkflowService) AllowedActions(ctx context.Context, articleID string, role models.UserRole) ([]models.ArticleStatus, error) {
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	return workflow.AllowedTransitions(article.Status, role), nil
}

// recordDecision stores the editorial decision as a review row. A duplicate
// decision by the same actor is tolerated, the transition already happened.
func (s *WorkflowService) recordDecision(ctx context.Context, articleID, actorID string, recommendation models.Recommendation, comments string) {
	review := &models.Review{
		ArticleID:        articleID,
		ReviewerID:       actorID,
		Recommendation:   recommendation,
		CommentsToAuthor: comments,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return
		}
		s.logger.Warn("failed to record editorial decision",
			zap.String("article_id", articleID), zap.Error(err))
	}
}
