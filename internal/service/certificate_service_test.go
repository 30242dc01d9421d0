package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/internal/repository"
	"github.com/ujmp/editorial-api/pkg/certpdf"
	appErrors "github.com/ujmp/editorial-api/pkg/errors"
)

type mockCertificateStore struct {
	certificates map[string]*models.Certificate
}

func (m *mockCertificateStore) Create(ctx context.Context, cert *models.Certificate) error {
	if m.certificates == nil {
		m.certificates = make(map[string]*models.Certificate)
	}
	for _, c := range m.certificates {
		if c.ArticleID == cert.ArticleID {
			return repository.ErrDuplicate
		}
	}
	cert.ID = uuid.NewString()
	cert.CertificateID = uuid.NewString()
	cert.Status = models.CertificateActive
	cert.IssuedAt = time.Now().UTC()
	copied := *cert
	m.certificates[cert.ID] = &copied
	return nil
}

func (m *mockCertificateStore) GetByArticle(ctx context.Context, articleID string) (*models.Certificate, error) {
	for _, c := range m.certificates {
		if c.ArticleID == articleID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateStore) GetByCertificateID(ctx context.Context, certificateID string) (*models.Certificate, error) {
	for _, c := range m.certificates {
		if c.CertificateID == certificateID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateStore) SavePDF(ctx context.Context, id string, pdf []byte) error {
	if c, ok := m.certificates[id]; ok {
		c.PDFFile = pdf
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockCertificateStore) Revoke(ctx context.Context, params repository.RevokeParams) error {
	c, ok := m.certificates[params.ID]
	if !ok || c.Status != models.CertificateActive {
		return sql.ErrNoRows
	}
	c.Status = models.CertificateRevoked
	c.RevokedAt = &params.RevokedAt
	c.RevokedBy = &params.RevokedBy
	c.RevocationReason = params.Reason
	return nil
}

type stubRenderer struct {
	rendered []certpdf.CertificateData
}

func (r *stubRenderer) Render(data certpdf.CertificateData) ([]byte, error) {
	r.rendered = append(r.rendered, data)
	return []byte("%PDF-stub"), nil
}

type certificateFixture struct {
	certificates *mockCertificateStore
	articles     *mockArticleStore
	journals     *mockJournalReader
	audit        *mockAuditWriter
	events       *mockEvents
	renderer     *stubRenderer
	svc          *CertificateService
}

func newCertificateFixture(article *models.Article) *certificateFixture {
	f := &certificateFixture{
		certificates: &mockCertificateStore{},
		articles:     &mockArticleStore{articles: map[string]*models.Article{article.ID: article}},
		journals: &mockJournalReader{journals: map[string]*models.Journal{
			"journal-apc": {ID: "journal-apc", Name: "Clinical Letters"},
		}},
		audit:    &mockAuditWriter{},
		events:   &mockEvents{},
		renderer: &stubRenderer{},
	}
	cfg := CertificateConfig{
		IssuerName:          "Universal Journal of Medical Publishing",
		VerificationBaseURL: "https://certs.example.org/verify",
	}
	f.svc = NewCertificateService(f.certificates, f.articles, f.journals, f.audit, f.events, f.renderer, cfg, nil)
	return f
}

func publishedArticle() *models.Article {
	when := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	url := "https://journals.example.org/cl/SUB-20240115-A3B2C1"
	return &models.Article{
		ID:            "art-1",
		SubmissionID:  "SUB-20240115-A3B2C1",
		Title:         "Outcomes of something",
		JournalID:     "journal-apc",
		Status:        models.StatusPublished,
		PaymentStatus: models.PaymentPaid,
		Authors:       []byte(`[{"full_name":"A. Researcher"},{"full_name":"B. Clinician"}]`),
		PublicationURL:  &url,
		PublicationDate: &when,
	}
}

func TestIssueForArticle(t *testing.T) {
	f := newCertificateFixture(publishedArticle())

	cert, err := f.svc.IssueForArticle(context.Background(), "art-1")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateActive, cert.Status)
	assert.NotEmpty(t, cert.PDFFile)
	assert.Equal(t, models.StatusCertificateIssued, f.articles.articles["art-1"].Status)

	require.Len(t, f.renderer.rendered, 1)
	data := f.renderer.rendered[0]
	assert.Equal(t, "Outcomes of something", data.ArticleTitle)
	assert.Equal(t, "A. Researcher, B. Clinician", data.AuthorNames)
	assert.Equal(t, "Clinical Letters", data.JournalName)
	assert.Contains(t, data.VerificationURL, cert.CertificateID)

	assert.Contains(t, f.audit.actions(), models.AuditActionCertificateIssued)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.EventCertificateReady, f.events.events[0].Kind)
}

type stubTransitionRecorder struct {
	transitions [][2]models.ArticleStatus
}

func (r *stubTransitionRecorder) RecordTransition(from, to models.ArticleStatus) {
	r.transitions = append(r.transitions, [2]models.ArticleStatus{from, to})
}

func TestIssueAuditsTerminalTransition(t *testing.T) {
	f := newCertificateFixture(publishedArticle())
	recorder := &stubTransitionRecorder{}
	f.svc.WithMetrics(recorder)

	_, err := f.svc.IssueForArticle(context.Background(), "art-1")
	require.NoError(t, err)
	assert.Contains(t, f.audit.actions(), models.AuditActionStatusChange)
	require.Len(t, recorder.transitions, 1)
	assert.Equal(t, models.StatusPublished, recorder.transitions[0][0])
	assert.Equal(t, models.StatusCertificateIssued, recorder.transitions[0][1])

	// Re-issuing after the terminal move neither audits nor counts again.
	_, err = f.svc.IssueForArticle(context.Background(), "art-1")
	require.NoError(t, err)
	assert.Len(t, recorder.transitions, 1)
}

func TestIssueForArticleIdempotent(t *testing.T) {
	f := newCertificateFixture(publishedArticle())

	first, err := f.svc.IssueForArticle(context.Background(), "art-1")
	require.NoError(t, err)

	second, err := f.svc.IssueForArticle(context.Background(), "art-1")
	require.NoError(t, err)
	assert.Equal(t, first.CertificateID, second.CertificateID)
	assert.Len(t, f.certificates.certificates, 1)
	// The rendered document is reused, not regenerated.
	assert.Len(t, f.renderer.rendered, 1)
}

func TestIssueRequiresPublishedStatus(t *testing.T) {
	article := publishedArticle()
	article.Status = models.StatusProduction
	f := newCertificateFixture(article)

	_, err := f.svc.IssueForArticle(context.Background(), "art-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed))
	assert.Empty(t, f.certificates.certificates)
}

func TestRevokeCertificate(t *testing.T) {
	f := newCertificateFixture(publishedArticle())
	cert, err := f.svc.IssueForArticle(context.Background(), "art-1")
	require.NoError(t, err)

	revoked, err := f.svc.Revoke(context.Background(), cert.CertificateID, "admin-1", "plagiarism confirmed")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateRevoked, revoked.Status)
	assert.Contains(t, f.audit.actions(), models.AuditActionCertificateRevoked)
	// The article keeps its terminal status.
	assert.Equal(t, models.StatusCertificateIssued, f.articles.articles["art-1"].Status)

	_, err = f.svc.Revoke(context.Background(), cert.CertificateID, "admin-1", "again")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed))
}

func TestRevokeRequiresReason(t *testing.T) {
	f := newCertificateFixture(publishedArticle())

	_, err := f.svc.Revoke(context.Background(), "whatever", "admin-1", "  ")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestVerifyCertificate(t *testing.T) {
	f := newCertificateFixture(publishedArticle())
	cert, err := f.svc.IssueForArticle(context.Background(), "art-1")
	require.NoError(t, err)

	verification, err := f.svc.Verify(context.Background(), cert.CertificateID)
	require.NoError(t, err)
	assert.True(t, verification.Valid)
	assert.Equal(t, "Outcomes of something", verification.ArticleTitle)

	_, err = f.svc.Revoke(context.Background(), cert.CertificateID, "admin-1", "withdrawn")
	require.NoError(t, err)

	verification, err = f.svc.Verify(context.Background(), cert.CertificateID)
	require.NoError(t, err)
	assert.False(t, verification.Valid)
	assert.Equal(t, models.CertificateRevoked, verification.Status)
}

func TestVerifyUnknownCertificate(t *testing.T) {
	f := newCertificateFixture(publishedArticle())

	_, err := f.svc.Verify(context.Background(), "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}
