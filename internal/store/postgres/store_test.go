package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculedger/doculedger/internal/domain"
	"github.com/doculedger/doculedger/internal/store"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &Store{querier: mock, log: zerolog.Nop()}, mock
}

func TestStore_SaveDocument(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)

	doc := &domain.Document{
		ID:             uuid.NewString(),
		Filename:       "statement.csv",
		SourceCurrency: "SEK",
		Status:         domain.DocumentPending,
		UploadTS:       time.Now().UTC(),
	}

	query := `
		INSERT INTO documents \(id, filename, source_currency, status, transaction_count, summary, error_message, uploaded_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(doc.ID, doc.Filename, doc.SourceCurrency, "pending", 0, "", "", doc.UploadTS).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := s.SaveDocument(ctx, doc)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("assigns id and defaults", func(t *testing.T) {
		fresh := &domain.Document{Filename: "receipt.png"}
		mock.ExpectExec(query).
			WithArgs(pgxmock.AnyArg(), "receipt.png", "", "pending", 0, "", "", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := s.SaveDocument(ctx, fresh)
		assert.NoError(t, err)
		assert.NotEmpty(t, fresh.ID)
		assert.Equal(t, domain.DocumentPending, fresh.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(doc.ID, doc.Filename, doc.SourceCurrency, "pending", 0, "", "", doc.UploadTS).
			WillReturnError(dbErr)

		err := s.SaveDocument(ctx, doc)
		assert.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_MarkDocumentProcessed(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)
	id := uuid.NewString()

	query := `
		UPDATE documents
		SET status = \$1, transaction_count = \$2, summary = \$3, error_message = ''
		WHERE id = \$4
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("processed", 12, "bank statement", id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := s.MarkDocumentProcessed(ctx, id, 12, "bank statement")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("processed", 12, "bank statement", id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := s.MarkDocumentProcessed(ctx, id, 12, "bank statement")
		assert.ErrorIs(t, err, store.ErrDocumentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_MarkDocumentFailed(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)
	id := uuid.NewString()

	mock.ExpectExec(`
		UPDATE documents
		SET status = \$1, error_message = \$2
		WHERE id = \$3
	`).
		WithArgs("failed", "unsupported document", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.MarkDocumentFailed(ctx, id, "unsupported document")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetDocument(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)
	id := uuid.NewString()
	uploaded := time.Now().UTC()

	query := `
		SELECT id, filename, source_currency, status, transaction_count, summary, error_message, uploaded_at
		FROM documents
		WHERE id = \$1
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "filename", "source_currency", "status", "transaction_count", "summary", "error_message", "uploaded_at",
			}).AddRow(id, "statement.csv", "SEK", "processed", 3, "CSV file with 3 transactions", "", uploaded))

		doc, err := s.GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentProcessed, doc.Status)
		assert.Equal(t, 3, doc.TransactionCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "filename", "source_currency", "status", "transaction_count", "summary", "error_message", "uploaded_at",
			}))

		_, err := s.GetDocument(ctx, id)
		assert.ErrorIs(t, err, store.ErrDocumentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)
	id := uuid.NewString()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM documents WHERE id = \$1`).
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		err := s.DeleteDocument(ctx, id)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM documents WHERE id = \$1`).
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := s.DeleteDocument(ctx, id)
		assert.ErrorIs(t, err, store.ErrDocumentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_SaveTransactions(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)
	docID := uuid.NewString()

	txs := []domain.Transaction{
		{
			DocumentID:       docID,
			Date:             civil.Date{Year: 2024, Month: 1, Day: 15},
			Description:      "ICA Supermarket",
			Category:         domain.CategoryGroceries,
			Type:             domain.TypeExpense,
			AmountOriginal:   120.50,
			CurrencyOriginal: "SEK",
			AmountBase:       120.50,
			ExchangeRate:     1.0,
		},
		{
			DocumentID:       docID,
			Date:             civil.Date{Year: 2024, Month: 1, Day: 16},
			Description:      "Lön januari",
			Category:         domain.CategoryOther,
			Type:             domain.TypeIncome,
			AmountOriginal:   25000,
			CurrencyOriginal: "SEK",
			AmountBase:       25000,
			ExchangeRate:     1.0,
		},
	}

	query := `
		INSERT INTO transactions \(id, document_id, transaction_date, description, category, transaction_type, amount_original, currency_original, amount_base, exchange_rate\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10\)
	`

	mock.ExpectBegin()
	for range txs {
		mock.ExpectExec(query).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	err := s.SaveTransactions(ctx, txs)
	require.NoError(t, err)
	assert.NotEmpty(t, txs[0].ID)
	assert.NotEmpty(t, txs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveTransactions_RollsBackOnMidBatchFailure(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)
	docID := uuid.NewString()

	txs := []domain.Transaction{
		{DocumentID: docID, Date: civil.Date{Year: 2024, Month: 2, Day: 1}, Description: "Coffee",
			Category: domain.CategoryDining, Type: domain.TypeExpense,
			AmountOriginal: 45, CurrencyOriginal: "SEK", AmountBase: 45, ExchangeRate: 1.0},
		{DocumentID: docID, Date: civil.Date{Year: 2024, Month: 2, Day: 2}, Description: "Groceries",
			Category: domain.CategoryGroceries, Type: domain.TypeExpense,
			AmountOriginal: 312, CurrencyOriginal: "SEK", AmountBase: 312, ExchangeRate: 1.0},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.SaveTransactions(ctx, txs)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveTransactions_EmptyBatchIsNoop(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)

	err := s.SaveTransactions(ctx, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListTransactions(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)
	docID := uuid.NewString()

	columns := []string{
		"id", "document_id", "transaction_date", "description", "category",
		"transaction_type", "amount_original", "currency_original", "amount_base", "exchange_rate",
	}

	t.Run("unfiltered", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, document_id, transaction_date, .+ FROM transactions`).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(uuid.NewString(), docID, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
					"ICA Supermarket", "groceries", "expense", 120.50, "SEK", 120.50, 1.0))

		txs, err := s.ListTransactions(ctx, store.TransactionFilter{})
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 15}, txs[0].Date)
		assert.Equal(t, domain.CategoryGroceries, txs[0].Category)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filtered by document, category and range", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM transactions\s+WHERE document_id = \$1 AND category = \$2 AND transaction_date >= \$3 AND transaction_date <= \$4`).
			WithArgs(docID, "dining",
				time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)).
			WillReturnRows(pgxmock.NewRows(columns))

		txs, err := s.ListTransactions(ctx, store.TransactionFilter{
			DocumentID: docID,
			Category:   domain.CategoryDining,
			From:       civil.Date{Year: 2024, Month: 1, Day: 1},
			To:         civil.Date{Year: 2024, Month: 1, Day: 31},
		})
		require.NoError(t, err)
		assert.Empty(t, txs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_SetBudget(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)

	mock.ExpectExec(`
		INSERT INTO budgets \(category, monthly_limit\)
		VALUES \(\$1, \$2\)
		ON CONFLICT \(category\) DO UPDATE SET monthly_limit = EXCLUDED.monthly_limit
	`).
		WithArgs("groceries", 4000.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetBudget(ctx, domain.CategoryGroceries, 4000.0)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListBudgets(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, category, monthly_limit, created_at\s+FROM budgets`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "category", "monthly_limit", "created_at"}).
			AddRow(int64(1), "groceries", 4000.0, time.Now()))

	budgets, err := s.ListBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, domain.CategoryGroceries, budgets[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}
