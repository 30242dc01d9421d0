package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujmp/editorial-api/internal/models"
)

func TestPaymentCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	payment := &models.Payment{
		InvoiceID:             "inv-1",
		Provider:              models.ProviderPayme,
		ProviderTransactionID: "tx-100",
		Amount:                150,
		Currency:              "USD",
		Status:                models.PaymentTxCompleted,
	}
	err := repo.Create(context.Background(), payment)
	require.NoError(t, err)
	assert.NotEmpty(t, payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentCreateDuplicateTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "payments_provider_transaction_id_key"})

	err := repo.Create(context.Background(), &models.Payment{
		InvoiceID:             "inv-1",
		Provider:              models.ProviderPayme,
		ProviderTransactionID: "tx-100",
		Amount:                150,
		Currency:              "USD",
		Status:                models.PaymentTxCompleted,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
