package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// TransactionType says whether money came in or went out.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the two known types.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Transaction represents one normalized monetary event extracted from a
// document. Amounts are always positive; direction is carried by Type.
// AmountBase is AmountOriginal converted into the reporting currency using
// ExchangeRate (1.0 when the source currency already is the base currency).
type Transaction struct {
	ID         string // assigned by the store, empty until persisted
	DocumentID string

	Date        civil.Date // calendar date, parsed from "YYYY-MM-DD"
	Description string     // never empty-for-null; defaults to ""
	Category    Category
	Type        TransactionType

	AmountOriginal   float64
	CurrencyOriginal string
	AmountBase       float64
	ExchangeRate     float64
}

// DocumentStatus tracks a document through its processing lifecycle.
type DocumentStatus string

const (
	DocumentPending   DocumentStatus = "pending"
	DocumentProcessed DocumentStatus = "processed"
	DocumentFailed    DocumentStatus = "failed"
)

// Document represents one uploaded artifact and its processing metadata.
// A document exclusively owns its transactions; deleting it cascades.
type Document struct {
	ID               string
	Filename         string
	UploadTS         time.Time
	SourceCurrency   string
	Status           DocumentStatus
	TransactionCount int
	Summary          string // short description of the document contents
	ErrorMessage     string // set only when Status == DocumentFailed
}
