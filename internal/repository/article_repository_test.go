package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujmp/editorial-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestGenerateSubmissionIDFormat(t *testing.T) {
	id := GenerateSubmissionID(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	assert.Regexp(t, `^SUB-20240115-[A-Z0-9]{6}$`, id)
}

func TestUpdateStatusConditionalWrite(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewArticleRepository(db)

	mock.ExpectExec("UPDATE articles SET status = .+ WHERE id = .+ AND status = .+").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:   "art-1",
		From: models.StatusUnderReview,
		To:   models.StatusAccepted,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusConcurrentWriterDetected(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewArticleRepository(db)

	// Another writer already moved the article; the expected status no
	// longer matches, so zero rows are touched.
	mock.ExpectExec("UPDATE articles SET status = .+ WHERE id = .+ AND status = .+").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:   "art-1",
		From: models.StatusUnderReview,
		To:   models.StatusRejected,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPaymentStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewArticleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles SET payment_status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.PaymentPaid, sqlmock.AnyArg(), "art-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetPaymentStatus(context.Background(), "art-1", models.PaymentPaid)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewArticleRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "submission_id", "title", "abstract", "keywords", "corresponding_author_id", "authors",
		"journal_id", "status", "payment_status", "ethics_declaration", "originality_declaration",
		"publication_url", "publication_date", "submitted_at", "created_at", "updated_at",
	}).AddRow("art-1", "SUB-20240115-A3B2C1", "Title", "Abstract", "", "author-1", []byte("[]"),
		"journal-1", string(models.StatusDraft), string(models.PaymentNone), true, true,
		nil, nil, nil, now, now)
	mock.ExpectQuery("SELECT .+ FROM articles WHERE id = ").
		WithArgs("art-1").
		WillReturnRows(rows)

	article, err := repo.GetByID(context.Background(), "art-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, article.Status)
	assert.Equal(t, "SUB-20240115-A3B2C1", article.SubmissionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
