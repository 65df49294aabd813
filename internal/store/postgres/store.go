package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/doculedger/doculedger/internal/domain"
	"github.com/doculedger/doculedger/internal/store"
)

// Store implements store.Store on PostgreSQL.
type Store struct {
	querier Querier // *pgxpool.Pool in production, pgxmock in tests
	log     zerolog.Logger
}

// NewStore creates a Store backed by the given database.
func NewStore(db *DB, log zerolog.Logger) *Store {
	return &Store{querier: db.Pool(), log: log}
}

var _ store.Store = (*Store)(nil)

// SaveDocument inserts a new document row. A missing ID or upload timestamp
// is filled in; the document starts in whatever status it carries
// (normally pending).
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadTS.IsZero() {
		doc.UploadTS = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = domain.DocumentPending
	}

	query := `
		INSERT INTO documents (id, filename, source_currency, status, transaction_count, summary, error_message, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.querier.Exec(ctx, query,
		doc.ID,
		doc.Filename,
		doc.SourceCurrency,
		string(doc.Status),
		doc.TransactionCount,
		doc.Summary,
		doc.ErrorMessage,
		doc.UploadTS,
	)
	if err != nil {
		s.log.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to save document")
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// MarkDocumentProcessed finalizes a successfully processed document.
func (s *Store) MarkDocumentProcessed(ctx context.Context, id string, transactionCount int, summary string) error {
	query := `
		UPDATE documents
		SET status = $1, transaction_count = $2, summary = $3, error_message = ''
		WHERE id = $4
	`

	tag, err := s.querier.Exec(ctx, query, string(domain.DocumentProcessed), transactionCount, summary, id)
	if err != nil {
		s.log.Error().Err(err).Str("document_id", id).Msg("Failed to mark document processed")
		return fmt.Errorf("failed to mark document processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDocumentNotFound
	}
	return nil
}

// MarkDocumentFailed records a document-fatal failure. The reason is shown
// to the uploader; transactions from the failed document are never saved.
func (s *Store) MarkDocumentFailed(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE documents
		SET status = $1, error_message = $2
		WHERE id = $3
	`

	tag, err := s.querier.Exec(ctx, query, string(domain.DocumentFailed), reason, id)
	if err != nil {
		s.log.Error().Err(err).Str("document_id", id).Msg("Failed to mark document failed")
		return fmt.Errorf("failed to mark document failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDocumentNotFound
	}
	return nil
}

// GetDocument fetches one document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	query := `
		SELECT id, filename, source_currency, status, transaction_count, summary, error_message, uploaded_at
		FROM documents
		WHERE id = $1
	`

	doc, err := scanDocument(s.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrDocumentNotFound
		}
		s.log.Error().Err(err).Str("document_id", id).Msg("Failed to get document")
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	query := `
		SELECT id, filename, source_currency, status, transaction_count, summary, error_message, uploaded_at
		FROM documents
		ORDER BY uploaded_at DESC
	`

	rows, err := s.querier.Query(ctx, query)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list documents")
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document; its transactions go with it via the
// foreign key cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.querier.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		s.log.Error().Err(err).Str("document_id", id).Msg("Failed to delete document")
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDocumentNotFound
	}
	return nil
}

// SaveTransactions inserts a batch of transactions in a single database
// transaction, assigning IDs to any that lack one. Either the whole batch
// is committed or none of it is.
func (s *Store) SaveTransactions(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	query := `
		INSERT INTO transactions (id, document_id, transaction_date, description, category, transaction_type, amount_original, currency_original, amount_base, exchange_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	dbTx, err := s.querier.Begin(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = dbTx.Rollback(ctx) }()

	for i := range txs {
		tx := &txs[i]
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		_, err := dbTx.Exec(ctx, query,
			tx.ID,
			tx.DocumentID,
			dateToTime(tx.Date),
			tx.Description,
			string(tx.Category),
			string(tx.Type),
			tx.AmountOriginal,
			tx.CurrencyOriginal,
			tx.AmountBase,
			tx.ExchangeRate,
		)
		if err != nil {
			s.log.Error().Err(err).Str("document_id", tx.DocumentID).Msg("Failed to save transaction")
			return fmt.Errorf("failed to save transaction: %w", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to commit transactions")
		return fmt.Errorf("failed to commit transactions: %w", err)
	}
	return nil
}

// ListTransactions returns transactions matching the filter, newest date
// first.
func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]domain.Transaction, error) {
	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.DocumentID != "" {
		conditions = append(conditions, "document_id = "+arg(filter.DocumentID))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = "+arg(string(filter.Category)))
	}
	if filter.Type != "" {
		conditions = append(conditions, "transaction_type = "+arg(string(filter.Type)))
	}
	if filter.From.IsValid() {
		conditions = append(conditions, "transaction_date >= "+arg(dateToTime(filter.From)))
	}
	if filter.To.IsValid() {
		conditions = append(conditions, "transaction_date <= "+arg(dateToTime(filter.To)))
	}

	query := `
		SELECT id, document_id, transaction_date, description, category, transaction_type, amount_original, currency_original, amount_base, exchange_rate
		FROM transactions
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY transaction_date DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.querier.Query(ctx, query, args...)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list transactions")
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			tx       domain.Transaction
			date     time.Time
			category string
			txType   string
		)
		err := rows.Scan(
			&tx.ID,
			&tx.DocumentID,
			&date,
			&tx.Description,
			&category,
			&txType,
			&tx.AmountOriginal,
			&tx.CurrencyOriginal,
			&tx.AmountBase,
			&tx.ExchangeRate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Date = civil.DateOf(date)
		tx.Category = domain.Category(category)
		tx.Type = domain.TransactionType(txType)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// SetBudget creates or replaces the monthly limit for a category.
func (s *Store) SetBudget(ctx context.Context, category domain.Category, monthlyLimit float64) error {
	query := `
		INSERT INTO budgets (category, monthly_limit)
		VALUES ($1, $2)
		ON CONFLICT (category) DO UPDATE SET monthly_limit = EXCLUDED.monthly_limit
	`

	if _, err := s.querier.Exec(ctx, query, string(category), monthlyLimit); err != nil {
		s.log.Error().Err(err).Str("category", string(category)).Msg("Failed to set budget")
		return fmt.Errorf("failed to set budget: %w", err)
	}
	return nil
}

// ListBudgets returns all configured budgets.
func (s *Store) ListBudgets(ctx context.Context) ([]store.Budget, error) {
	query := `
		SELECT id, category, monthly_limit, created_at
		FROM budgets
		ORDER BY category
	`

	rows, err := s.querier.Query(ctx, query)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list budgets")
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []store.Budget
	for rows.Next() {
		var (
			b        store.Budget
			category string
		)
		if err := rows.Scan(&b.ID, &category, &b.MonthlyLimit, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		b.Category = domain.Category(category)
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// MonthlySummary reads the aggregated monthly view.
func (s *Store) MonthlySummary(ctx context.Context) ([]store.MonthlyTotal, error) {
	query := `
		SELECT month, category, transaction_type, total, transaction_count
		FROM monthly_summary
	`

	rows, err := s.querier.Query(ctx, query)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read monthly summary")
		return nil, fmt.Errorf("failed to read monthly summary: %w", err)
	}
	defer rows.Close()

	var totals []store.MonthlyTotal
	for rows.Next() {
		var (
			mt       store.MonthlyTotal
			category string
			txType   string
		)
		if err := rows.Scan(&mt.Month, &category, &txType, &mt.Total, &mt.Count); err != nil {
			return nil, fmt.Errorf("failed to scan monthly total: %w", err)
		}
		mt.Category = domain.Category(category)
		mt.Type = domain.TransactionType(txType)
		totals = append(totals, mt)
	}
	return totals, rows.Err()
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var (
		doc    domain.Document
		status string
	)
	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.SourceCurrency,
		&status,
		&doc.TransactionCount,
		&doc.Summary,
		&doc.ErrorMessage,
		&doc.UploadTS,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func dateToTime(d civil.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}
