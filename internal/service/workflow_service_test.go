package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/internal/repository"
	appErrors "github.com/ujmp/editorial-api/pkg/errors"
)

type mockArticleStore struct {
	articles map[string]*models.Article
}

func (m *mockArticleStore) GetByID(ctx context.Context, id string) (*models.Article, error) {
	if a, ok := m.articles[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockArticleStore) UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error {
	a, ok := m.articles[params.ID]
	if !ok || a.Status != params.From {
		return sql.ErrNoRows
	}
	a.Status = params.To
	if params.SetSubmittedAt && a.SubmittedAt == nil {
		now := time.Now().UTC()
		a.SubmittedAt = &now
	}
	if params.PublicationURL != nil {
		a.PublicationURL = params.PublicationURL
	}
	if params.PublicationDate != nil {
		a.PublicationDate = params.PublicationDate
	}
	return nil
}

func (m *mockArticleStore) SetPaymentStatus(ctx context.Context, articleID string, payment models.PaymentStatus) error {
	a, ok := m.articles[articleID]
	if !ok {
		return sql.ErrNoRows
	}
	a.PaymentStatus = payment
	return nil
}

type mockVersionStore struct {
	versions map[string][]models.ArticleVersion
}

func (m *mockVersionStore) Create(ctx context.Context, version *models.ArticleVersion) error {
	if m.versions == nil {
		m.versions = make(map[string][]models.ArticleVersion)
	}
	for _, v := range m.versions[version.ArticleID] {
		if v.VersionNumber == version.VersionNumber {
			return repository.ErrDuplicate
		}
	}
	if version.ID == "" {
		version.ID = "ver-new"
	}
	m.versions[version.ArticleID] = append(m.versions[version.ArticleID], *version)
	return nil
}

func (m *mockVersionStore) MaxVersionNumber(ctx context.Context, articleID string) (int, error) {
	max := 0
	for _, v := range m.versions[articleID] {
		if v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max, nil
}

type mockReviewStore struct {
	reviews []models.Review
}

func (m *mockReviewStore) Create(ctx context.Context, review *models.Review) error {
	m.reviews = append(m.reviews, *review)
	return nil
}

type mockInvoiceCreator struct {
	existing *models.Invoice
	created  *models.Invoice
}

func (m *mockInvoiceCreator) GetOrCreateForArticle(ctx context.Context, articleID string, amount float64, currency string) (*models.Invoice, bool, error) {
	if m.existing != nil {
		return m.existing, false, nil
	}
	m.created = &models.Invoice{
		ID:        "inv-new",
		ArticleID: articleID,
		Amount:    amount,
		Currency:  currency,
		Status:    models.InvoicePending,
	}
	return m.created, true, nil
}

type mockJournalReader struct {
	journals map[string]*models.Journal
}

func (m *mockJournalReader) GetByID(ctx context.Context, id string) (*models.Journal, error) {
	if j, ok := m.journals[id]; ok {
		return j, nil
	}
	return nil, sql.ErrNoRows
}

type mockAuditWriter struct {
	logs []models.AuditLog
}

func (m *mockAuditWriter) Create(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockAuditWriter) actions() []string {
	actions := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		actions = append(actions, l.Action)
	}
	return actions
}

type mockEvents struct {
	events []models.DomainEvent
}

func (m *mockEvents) Publish(event models.DomainEvent) {
	m.events = append(m.events, event)
}

type workflowFixture struct {
	articles *mockArticleStore
	versions *mockVersionStore
	reviews  *mockReviewStore
	invoices *mockInvoiceCreator
	journals *mockJournalReader
	audit    *mockAuditWriter
	events   *mockEvents
	svc      *WorkflowService
}

func newWorkflowFixture(articles ...*models.Article) *workflowFixture {
	f := &workflowFixture{
		articles: &mockArticleStore{articles: map[string]*models.Article{}},
		versions: &mockVersionStore{},
		reviews:  &mockReviewStore{},
		invoices: &mockInvoiceCreator{},
		journals: &mockJournalReader{journals: map[string]*models.Journal{
			"journal-apc":  {ID: "journal-apc", Name: "Clinical Letters", APCEnabled: true, APCAmount: 150, Currency: "USD", PublicationBaseURL: "https://journals.example.org/cl", IsActive: true},
			"journal-free": {ID: "journal-free", Name: "Open Notes", APCEnabled: false, IsActive: true},
		}},
		audit:  &mockAuditWriter{},
		events: &mockEvents{},
	}
	for _, a := range articles {
		f.articles.articles[a.ID] = a
	}
	f.svc = NewWorkflowService(f.articles, f.versions, f.reviews, f.invoices, f.journals, f.audit, f.events, nil)
	return f
}

func draftArticle() *models.Article {
	return &models.Article{
		ID:                     "art-1",
		SubmissionID:           "SUB-20240115-A3B2C1",
		Title:                  "Outcomes of something",
		Abstract:               "We studied it.",
		CorrespondingAuthorID:  "author-1",
		JournalID:              "journal-apc",
		Status:                 models.StatusDraft,
		PaymentStatus:          models.PaymentNone,
		EthicsDeclaration:      true,
		OriginalityDeclaration: true,
	}
}

func withVersion(f *workflowFixture, articleID string, number int) {
	if f.versions.versions == nil {
		f.versions.versions = make(map[string][]models.ArticleVersion)
	}
	f.versions.versions[articleID] = append(f.versions.versions[articleID], models.ArticleVersion{
		ID: "ver-seed", ArticleID: articleID, VersionNumber: number, ManuscriptFile: "paper.pdf",
	})
}

func TestSubmitAutoAdvancesToDeskCheck(t *testing.T) {
	f := newWorkflowFixture(draftArticle())
	withVersion(f, "art-1", 1)

	article, err := f.svc.Submit(context.Background(), "art-1", "author-1", models.RoleAuthor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeskCheck, article.Status)

	stored := f.articles.articles["art-1"]
	assert.Equal(t, models.StatusDeskCheck, stored.Status)
	require.NotNil(t, stored.SubmittedAt)
	assert.Contains(t, f.audit.actions(), models.AuditActionStatusChange)
	assert.Contains(t, f.audit.actions(), models.AuditActionArticleSubmitted)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.EventArticleSubmitted, f.events.events[0].Kind)
}

func TestSubmitRequiresCorrespondingAuthor(t *testing.T) {
	f := newWorkflowFixture(draftArticle())
	withVersion(f, "art-1", 1)

	_, err := f.svc.Submit(context.Background(), "art-1", "someone-else", models.RoleAuthor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestSubmitRequiresDeclarations(t *testing.T) {
	article := draftArticle()
	article.EthicsDeclaration = false
	f := newWorkflowFixture(article)
	withVersion(f, "art-1", 1)

	_, err := f.svc.Submit(context.Background(), "art-1", "author-1", models.RoleAuthor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed))
}

func TestSubmitRequiresManuscript(t *testing.T) {
	f := newWorkflowFixture(draftArticle())

	_, err := f.svc.Submit(context.Background(), "art-1", "author-1", models.RoleAuthor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed))
}

func TestSubmitRejectsNonDraft(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusUnderReview
	f := newWorkflowFixture(article)
	withVersion(f, "art-1", 1)

	_, err := f.svc.Submit(context.Background(), "art-1", "author-1", models.RoleAuthor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrIllegalTransition))
}

func TestSubmittedAtSetOnlyOnce(t *testing.T) {
	article := draftArticle()
	earlier := time.Now().UTC().Add(-48 * time.Hour)
	article.SubmittedAt = &earlier
	f := newWorkflowFixture(article)
	withVersion(f, "art-1", 1)

	_, err := f.svc.Submit(context.Background(), "art-1", "author-1", models.RoleAuthor)
	require.NoError(t, err)
	assert.Equal(t, earlier, *f.articles.articles["art-1"].SubmittedAt)
}

func TestUploadInitialManuscript(t *testing.T) {
	f := newWorkflowFixture(draftArticle())

	version, err := f.svc.UploadInitialManuscript(context.Background(), "art-1", "author-1", "paper.pdf", "first upload")
	require.NoError(t, err)
	assert.Equal(t, 1, version.VersionNumber)
	assert.Equal(t, models.RevisionInitial, version.RevisionType)
	// No transition happens on upload.
	assert.Equal(t, models.StatusDraft, f.articles.articles["art-1"].Status)
}

func TestUploadInitialManuscriptOnlyOnce(t *testing.T) {
	f := newWorkflowFixture(draftArticle())
	withVersion(f, "art-1", 1)

	_, err := f.svc.UploadInitialManuscript(context.Background(), "art-1", "author-1", "paper.pdf", "")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed))
}

func TestDeskRejectRecordsDecision(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusDeskCheck
	f := newWorkflowFixture(article)

	result, err := f.svc.DeskReject(context.Background(), "art-1", "admin-1", models.RoleAdmin, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, result.Status)
	require.Len(t, f.reviews.reviews, 1)
	assert.Equal(t, models.RecommendReject, f.reviews.reviews[0].Recommendation)
	assert.Equal(t, "Desk rejected", f.reviews.reviews[0].CommentsToAuthor)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.EventArticleRejected, f.events.events[0].Kind)
}

func TestDeskRejectOnlyBeforeReview(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusUnderReview
	f := newWorkflowFixture(article)

	_, err := f.svc.DeskReject(context.Background(), "art-1", "admin-1", models.RoleAdmin, "late")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrIllegalTransition))
}

func TestSendToReviewRequiresAdmin(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusDeskCheck
	f := newWorkflowFixture(article)

	_, err := f.svc.SendToReview(context.Background(), "art-1", "author-1", models.RoleAuthor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrIllegalTransition))

	result, err := f.svc.SendToReview(context.Background(), "art-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderReview, result.Status)
}

func TestRequestRevisionValidatesType(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusUnderReview
	f := newWorkflowFixture(article)

	_, err := f.svc.RequestRevision(context.Background(), "art-1", "rev-1", models.RoleReviewer, models.RevisionInitial, "x")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	result, err := f.svc.RequestRevision(context.Background(), "art-1", "rev-1", models.RoleReviewer, models.RevisionMajor, "needs work")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevisionRequired, result.Status)
	require.Len(t, f.reviews.reviews, 1)
	assert.Equal(t, models.RecommendRevise, f.reviews.reviews[0].Recommendation)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.EventRevisionRequested, f.events.events[0].Kind)
	assert.Equal(t, "MAJOR", f.events.events[0].Params["revision_type"])
}

func TestSubmitRevisionReturnsToReview(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusRevisionRequired
	f := newWorkflowFixture(article)
	withVersion(f, "art-1", 1)

	version, err := f.svc.SubmitRevision(context.Background(), "art-1", "author-1", "paper-v2.pdf", "addressed comments")
	require.NoError(t, err)
	assert.Equal(t, 2, version.VersionNumber)
	assert.Equal(t, models.RevisionMinor, version.RevisionType)
	assert.Equal(t, models.StatusUnderReview, f.articles.articles["art-1"].Status)

	// The automatic edge is audited as a system action.
	require.NotEmpty(t, f.audit.logs)
	assert.Nil(t, f.audit.logs[len(f.audit.logs)-1].ActorID)
}

func TestSubmitRevisionRequiresRevisionRequired(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusUnderReview
	f := newWorkflowFixture(article)
	withVersion(f, "art-1", 1)

	_, err := f.svc.SubmitRevision(context.Background(), "art-1", "author-1", "paper-v2.pdf", "")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed))
}

func TestAcceptCreatesInvoiceForAPCJournal(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusUnderReview
	f := newWorkflowFixture(article)

	result, err := f.svc.Accept(context.Background(), "art-1", "admin-1", models.RoleAdmin, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, result.Status)
	assert.Equal(t, models.PaymentPending, result.PaymentStatus)
	require.NotNil(t, f.invoices.created)
	assert.Equal(t, 150.0, f.invoices.created.Amount)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.EventArticleAccepted, f.events.events[0].Kind)
	assert.Equal(t, "inv-new", f.events.events[0].InvoiceID)
}

func TestAcceptFreeJournalWaivesPayment(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusUnderReview
	article.JournalID = "journal-free"
	f := newWorkflowFixture(article)

	result, err := f.svc.Accept(context.Background(), "art-1", "admin-1", models.RoleAdmin, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentNotRequired, result.PaymentStatus)
	assert.Nil(t, f.invoices.created)
}

func TestAcceptRecordsEditorialDecision(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusUnderReview
	f := newWorkflowFixture(article)

	_, err := f.svc.Accept(context.Background(), "art-1", "admin-1", models.RoleAdmin, "")
	require.NoError(t, err)
	require.Len(t, f.reviews.reviews, 1)
	assert.Equal(t, models.RecommendAccept, f.reviews.reviews[0].Recommendation)
	assert.Equal(t, "Article accepted", f.reviews.reviews[0].CommentsToAuthor)
	assert.Equal(t, "admin-1", f.reviews.reviews[0].ReviewerID)
}

func TestRejectWithoutCommentsRecordsDecision(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusUnderReview
	f := newWorkflowFixture(article)

	_, err := f.svc.Reject(context.Background(), "art-1", "admin-1", models.RoleAdmin, "")
	require.NoError(t, err)
	require.Len(t, f.reviews.reviews, 1)
	assert.Equal(t, models.RecommendReject, f.reviews.reviews[0].Recommendation)
	assert.Equal(t, "Article rejected", f.reviews.reviews[0].CommentsToAuthor)
}

func TestMoveToProductionPaymentGate(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusAccepted
	article.PaymentStatus = models.PaymentPending
	f := newWorkflowFixture(article)

	_, err := f.svc.MoveToProduction(context.Background(), "art-1", "admin-1", models.RoleAdmin)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPaymentRequired))
	// The gate leaves the scientific status untouched.
	assert.Equal(t, models.StatusAccepted, f.articles.articles["art-1"].Status)

	f.articles.articles["art-1"].PaymentStatus = models.PaymentPaid
	result, err := f.svc.MoveToProduction(context.Background(), "art-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProduction, result.Status)
}

func TestPublishPaymentGate(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusProduction
	article.PaymentStatus = models.PaymentPending
	f := newWorkflowFixture(article)

	_, err := f.svc.Publish(context.Background(), "art-1", "admin-1", models.RoleAdmin, "", nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPaymentRequired))
}

func TestPublishSetsURLAndDate(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusProduction
	article.PaymentStatus = models.PaymentNotRequired
	f := newWorkflowFixture(article)

	result, err := f.svc.Publish(context.Background(), "art-1", "admin-1", models.RoleAdmin, "", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, result.Status)
	require.NotNil(t, result.PublicationURL)
	assert.Equal(t, "https://journals.example.org/cl/SUB-20240115-A3B2C1", *result.PublicationURL)
	require.NotNil(t, result.PublicationDate)
	assert.Contains(t, f.audit.actions(), models.AuditActionArticlePublished)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.EventArticlePublished, f.events.events[0].Kind)
}

func TestPublishFromScheduled(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusScheduled
	article.PaymentStatus = models.PaymentPaid
	f := newWorkflowFixture(article)

	result, err := f.svc.Publish(context.Background(), "art-1", "admin-1", models.RoleAdmin, "https://doi.example.org/1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, result.Status)
}

func TestArchiveOnlyFromRejected(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusRejected
	f := newWorkflowFixture(article)

	result, err := f.svc.Archive(context.Background(), "art-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, result.Status)

	_, err = f.svc.Archive(context.Background(), "art-1", "admin-1", models.RoleAdmin)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrIllegalTransition))
}

func TestTerminalStatusBlocksEverything(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusCertificateIssued
	f := newWorkflowFixture(article)

	_, err := f.svc.Reject(context.Background(), "art-1", "admin-1", models.RoleAdmin, "")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrIllegalTransition))
}

func TestConcurrentTransitionSurfacesConflict(t *testing.T) {
	article := draftArticle()
	article.Status = models.StatusDeskCheck
	f := newWorkflowFixture(article)

	// Simulate a concurrent writer moving the article between the guard's
	// read and the conditional write.
	loaded, err := f.svc.loadArticle(context.Background(), "art-1")
	require.NoError(t, err)
	f.articles.articles["art-1"].Status = models.StatusRejected

	err = f.svc.transitionStatus(context.Background(), transitionRequest{
		article:   loaded,
		role:      models.RoleAdmin,
		requested: models.StatusUnderReview,
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestFullLifecycleRoundTrip(t *testing.T) {
	f := newWorkflowFixture(draftArticle())
	ctx := context.Background()

	_, err := f.svc.UploadInitialManuscript(ctx, "art-1", "author-1", "paper.pdf", "")
	require.NoError(t, err)

	article, err := f.svc.Submit(ctx, "art-1", "author-1", models.RoleAuthor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeskCheck, article.Status)

	article, err = f.svc.SendToReview(ctx, "art-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderReview, article.Status)

	article, err = f.svc.RequestRevision(ctx, "art-1", "rev-1", models.RoleReviewer, models.RevisionMinor, "tighten methods")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevisionRequired, article.Status)

	version, err := f.svc.SubmitRevision(ctx, "art-1", "author-1", "paper-v2.pdf", "done")
	require.NoError(t, err)
	assert.Equal(t, 2, version.VersionNumber)
	assert.Equal(t, models.StatusUnderReview, f.articles.articles["art-1"].Status)

	article, err = f.svc.Accept(ctx, "art-1", "admin-1", models.RoleAdmin, "sound methodology")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, article.Status)
	assert.Equal(t, models.PaymentPending, article.PaymentStatus)

	// Payment settles out of band; the workflow only reads the flag.
	require.NoError(t, f.articles.SetPaymentStatus(ctx, "art-1", models.PaymentPaid))

	article, err = f.svc.MoveToProduction(ctx, "art-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProduction, article.Status)

	article, err = f.svc.Schedule(ctx, "art-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, article.Status)

	article, err = f.svc.Publish(ctx, "art-1", "admin-1", models.RoleAdmin, "", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, article.Status)
	require.NotNil(t, article.PublicationURL)
}
