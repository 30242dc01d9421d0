package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/internal/workflow"
	appErrors "github.com/ujmp/editorial-api/pkg/errors"
)

type articleCrudStore interface {
	Create(ctx context.Context, article *models.Article) error
	GetByID(ctx context.Context, id string) (*models.Article, error)
	GetBySubmissionID(ctx context.Context, submissionID string) (*models.Article, error)
	List(ctx context.Context, filter models.ArticleFilter) ([]models.Article, error)
	UpdateDraft(ctx context.Context, article *models.Article) error
}

type versionLister interface {
	ListByArticle(ctx context.Context, articleID string) ([]models.ArticleVersion, error)
}

type reviewLister interface {
	ListByArticle(ctx context.Context, articleID string) ([]models.Review, error)
}

type auditLister interface {
	ListForEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error)
}

type reviewerScopeReader interface {
	AssignedJournalIDs(ctx context.Context, reviewerID string) ([]string, error)
}

// CreateArticleRequest describes a new draft.
type CreateArticleRequest struct {
	Title                  string          `json:"title" validate:"required"`
	Abstract               string          `json:"abstract"`
	Keywords               string          `json:"keywords"`
	JournalID              string          `json:"journal_id" validate:"required"`
	Authors                json.RawMessage `json:"authors"`
	EthicsDeclaration      bool            `json:"ethics_declaration"`
	OriginalityDeclaration bool            `json:"originality_declaration"`
}

// UpdateDraftRequest describes an author edit to a draft.
type UpdateDraftRequest struct {
	Title                  *string         `json:"title"`
	Abstract               *string         `json:"abstract"`
	Keywords               *string         `json:"keywords"`
	Authors                json.RawMessage `json:"authors"`
	EthicsDeclaration      *bool           `json:"ethics_declaration"`
	OriginalityDeclaration *bool           `json:"originality_declaration"`
}

// ArticleDetail bundles an article with its editorial context.
type ArticleDetail struct {
	Article        models.Article          `json:"article"`
	Versions       []models.ArticleVersion `json:"versions,omitempty"`
	Reviews        []models.Review         `json:"reviews,omitempty"`
	AllowedActions []models.ArticleStatus  `json:"allowed_actions,omitempty"`
}

// ArticleService serves article reads and draft-phase writes. Status changes
// are the workflow service's job; this service never touches status.
type ArticleService struct {
	articles  articleCrudStore
	versions  versionLister
	reviews   reviewLister
	audit     auditLister
	journals  journalReader
	scope     reviewerScopeReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewArticleService constructs ArticleService.
func NewArticleService(articles articleCrudStore, versions versionLister, reviews reviewLister, audit auditLister, journals journalReader, scope reviewerScopeReader, validate *validator.Validate, logger *zap.Logger) *ArticleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleService{
		articles:  articles,
		versions:  versions,
		reviews:   reviews,
		audit:     audit,
		journals:  journals,
		scope:     scope,
		validator: validate,
		logger:    logger,
	}
}

// CreateDraft registers a new draft for the calling author.
func (s *ArticleService) CreateDraft(ctx context.Context, authorID string, req CreateArticleRequest) (*models.Article, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid article payload")
	}
	journal, err := s.journals.GetByID(ctx, req.JournalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "journal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load journal")
	}
	if !journal.IsActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "journal is not accepting submissions")
	}

	article := &models.Article{
		Title:                  req.Title,
		Abstract:               req.Abstract,
		Keywords:               req.Keywords,
		CorrespondingAuthorID:  authorID,
		Authors:                req.Authors,
		JournalID:              req.JournalID,
		EthicsDeclaration:      req.EthicsDeclaration,
		OriginalityDeclaration: req.OriginalityDeclaration,
	}
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create article")
	}
	return article, nil
}

// UpdateDraft applies author edits while the article is still a draft.
func (s *ArticleService) UpdateDraft(ctx context.Context, articleID, actorID string, req UpdateDraftRequest) (*models.Article, error) {
	article, err := s.getOwned(ctx, articleID, actorID)
	if err != nil {
		return nil, err
	}
	if article.Status != models.StatusDraft {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only drafts can be edited")
	}

	if req.Title != nil {
		article.Title = *req.Title
	}
	if req.Abstract != nil {
		article.Abstract = *req.Abstract
	}
	if req.Keywords != nil {
		article.Keywords = *req.Keywords
	}
	if len(req.Authors) > 0 {
		article.Authors = req.Authors
	}
	if req.EthicsDeclaration != nil {
		article.EthicsDeclaration = *req.EthicsDeclaration
	}
	if req.OriginalityDeclaration != nil {
		article.OriginalityDeclaration = *req.OriginalityDeclaration
	}

	if err := s.articles.UpdateDraft(ctx, article); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The draft left DRAFT between the read and the write.
			return nil, appErrors.Clone(appErrors.ErrConflict, "article is no longer a draft")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update draft")
	}
	return article, nil
}

// Get returns one article with versions, reviews and the caller's allowed
// actions. Visibility: authors see their own, reviewers see assigned
// journals, admins see everything.
func (s *ArticleService) Get(ctx context.Context, articleID, actorID string, role models.UserRole) (*ArticleDetail, error) {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "article not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load article")
	}
	if err := s.checkVisibility(ctx, article, actorID, role); err != nil {
		return nil, err
	}

	detail := &ArticleDetail{Article: *article, AllowedActions: workflow.AllowedTransitions(article.Status, role)}
	if versions, err := s.versions.ListByArticle(ctx, articleID); err == nil {
		detail.Versions = versions
	}
	// Confidential comments stay between reviewers and editors.
	if role != models.RoleAuthor {
		if reviews, err := s.reviews.ListByArticle(ctx, articleID); err == nil {
			detail.Reviews = reviews
		}
	} else if reviews, err := s.reviews.ListByArticle(ctx, articleID); err == nil {
		redacted := make([]models.Review, 0, len(reviews))
		for _, review := range reviews {
			review.ConfidentialComments = ""
			redacted = append(redacted, review)
		}
		detail.Reviews = redacted
	}
	return detail, nil
}

// List returns articles scoped to the caller's role.
func (s *ArticleService) List(ctx context.Context, actorID string, role models.UserRole, filter models.ArticleFilter) ([]models.Article, error) {
	switch role {
	case models.RoleAuthor:
		filter.CorrespondingAuthorID = actorID
	case models.RoleReviewer:
		ids, err := s.scope.AssignedJournalIDs(ctx, actorID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewer assignments")
		}
		if len(ids) == 0 {
			return []models.Article{}, nil
		}
		filter.JournalIDs = ids
	case models.RoleAdmin:
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}

	articles, err := s.articles.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list articles")
	}
	return articles, nil
}

// Timeline returns the article's audit trail, oldest first.
func (s *ArticleService) Timeline(ctx context.Context, articleID, actorID string, role models.UserRole) ([]models.AuditLog, error) {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "article not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load article")
	}
	if err := s.checkVisibility(ctx, article, actorID, role); err != nil {
		return nil, err
	}
	logs, err := s.audit.ListForEntity(ctx, models.EntityArticle, articleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeline")
	}
	return logs, nil
}

// Versions lists the article's manuscript versions.
func (s *ArticleService) Versions(ctx context.Context, articleID, actorID string, role models.UserRole) ([]models.ArticleVersion, error) {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "article not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load article")
	}
	if err := s.checkVisibility(ctx, article, actorID, role); err != nil {
		return nil, err
	}
	versions, err := s.versions.ListByArticle(ctx, articleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load versions")
	}
	return versions, nil
}

func (s *ArticleService) getOwned(ctx context.Context, articleID, actorID string) (*models.Article, error) {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "article not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load article")
	}
	if article.CorrespondingAuthorID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "article belongs to another author")
	}
	return article, nil
}

func (s *ArticleService) checkVisibility(ctx context.Context, article *models.Article, actorID string, role models.UserRole) error {
	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleAuthor:
		if article.CorrespondingAuthorID == actorID {
			return nil
		}
	case models.RoleReviewer:
		ids, err := s.scope.AssignedJournalIDs(ctx, actorID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewer assignments")
		}
		for _, id := range ids {
			if id == article.JournalID {
				return nil
			}
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this article")
}
