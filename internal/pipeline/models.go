package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/civil"

	"github.com/doculedger/doculedger/internal/domain"
)

// Upload is one file handed to the pipeline together with the currency the
// uploader declared for it. SourceCurrency may be empty, in which case the
// currency detected by the extraction model is used.
type Upload struct {
	DocumentID     string
	Filename       string
	SourceCurrency string
	Data           []byte
}

// ModelOutput is the parsed envelope returned by the extraction model (or
// synthesized by the CSV mapper): document metadata plus unvalidated
// candidate records.
type ModelOutput struct {
	DocType      string           `json:"doc_type"`
	Currency     string           `json:"currency"`
	Summary      string           `json:"summary"`
	Transactions []map[string]any `json:"transactions"`
}

// WarningKind labels the non-fatal defects collected while processing a
// document.
type WarningKind string

const (
	WarnRecordValidation WarningKind = "record_validation"
	WarnDuplicateRecord  WarningKind = "duplicate_record"
	WarnRateFallback     WarningKind = "rate_fallback"
)

// Warning is one dropped-record or degraded-mode note surfaced on the
// document summary. Warnings never abort a batch.
type Warning struct {
	Kind    WarningKind
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}

// Summary describes how one document was processed.
type Summary struct {
	Count       int
	Warnings    []Warning
	Currency    string  // source currency the amounts were converted from
	Rate        float64 // exchange rate applied (1.0 for base currency, 0 when nothing converted)
	Description string  // short human-readable note about the document
}

// Batch is the final validated, deduplicated output for one document, ready
// to be handed to the store.
type Batch struct {
	Transactions []domain.Transaction
	Summary      Summary
}

// rawTransaction is a candidate record after per-field coercion but before
// currency conversion. Amount is always positive; Type carries direction.
type rawTransaction struct {
	Date        civil.Date
	Description string
	Amount      float64
	Type        domain.TransactionType
	Category    domain.Category
}

type dedupeKey struct {
	Date        string
	AmountCents int64
	Description string
}

// Deduper tracks (date, amount, description) tuples already emitted.
// One Deduper spans a whole batch upload so duplicates are caught across
// documents processed concurrently; it is safe for concurrent use.
type Deduper struct {
	mu   sync.Mutex
	seen map[dedupeKey]bool
}

// NewDeduper creates an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[dedupeKey]bool)}
}

// Observe records the tuple and reports whether it was already present.
// Description matching is case-insensitive and trimmed; amounts compare at
// cent precision.
func (d *Deduper) Observe(date civil.Date, amount float64, description string) bool {
	key := dedupeKey{
		Date:        date.String(),
		AmountCents: int64(amount*100 + 0.5),
		Description: strings.ToLower(strings.TrimSpace(description)),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[key] {
		return true
	}
	d.seen[key] = true
	return false
}
