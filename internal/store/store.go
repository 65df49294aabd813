// Package store defines the persistence contract for documents,
// transactions and budgets. The postgres subpackage provides the production
// implementation; tests substitute mocks.
package store

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"

	"github.com/doculedger/doculedger/internal/domain"
)

// ErrDocumentNotFound is returned when a document id does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// TransactionFilter narrows a transaction listing. Zero values mean "no
// constraint on this dimension".
type TransactionFilter struct {
	DocumentID string
	Category   domain.Category
	Type       domain.TransactionType
	From       civil.Date
	To         civil.Date
	Limit      int
}

// Budget is a monthly spending limit for one category.
type Budget struct {
	ID           int64
	Category     domain.Category
	MonthlyLimit float64
	CreatedAt    time.Time
}

// MonthlyTotal is one row of the aggregated monthly view: total converted
// amount per (month, category, type).
type MonthlyTotal struct {
	Month    time.Time
	Category domain.Category
	Type     domain.TransactionType
	Total    float64
	Count    int64
}

// Store persists extraction results. Document rows move pending -> processed
// or pending -> failed; deleting a document cascades to its transactions.
type Store interface {
	SaveDocument(ctx context.Context, doc *domain.Document) error
	MarkDocumentProcessed(ctx context.Context, id string, transactionCount int, summary string) error
	MarkDocumentFailed(ctx context.Context, id string, reason string) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	SaveTransactions(ctx context.Context, txs []domain.Transaction) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error)

	SetBudget(ctx context.Context, category domain.Category, monthlyLimit float64) error
	ListBudgets(ctx context.Context) ([]Budget, error)
	MonthlySummary(ctx context.Context) ([]MonthlyTotal, error)
}
