// Package pipeline implements the document-to-transaction extraction
// pipeline: it routes an uploaded file to the right extractor, invokes AI
// extraction or CSV header mapping, converts amounts into the base currency,
// validates and deduplicates the records, and returns the final batch with a
// per-document summary.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/doculedger/doculedger/internal/domain"
	"github.com/doculedger/doculedger/internal/extract"
)

// csvAITextLimit caps how much raw CSV text is handed to the model when
// header mapping fails. Enough rows for the model to infer the layout,
// bounded so a huge export cannot blow the request.
const csvAITextLimit = 3000

// Processor orchestrates one document's journey from raw bytes to a
// validated transaction batch. It is safe for concurrent use; every call is
// independent except for an optionally shared Deduper.
type Processor struct {
	extractor    Extractor
	parser       AIParser
	rates        RateResolver
	baseCurrency string
	log          zerolog.Logger
}

// NewProcessor wires the pipeline together.
func NewProcessor(extractor Extractor, parser AIParser, resolver RateResolver, baseCurrency string, log zerolog.Logger) *Processor {
	return &Processor{
		extractor:    extractor,
		parser:       parser,
		rates:        resolver,
		baseCurrency: strings.ToUpper(baseCurrency),
		log:          log,
	}
}

// Process handles a single standalone document.
func (p *Processor) Process(ctx context.Context, up Upload) (*Batch, error) {
	return p.ProcessWith(ctx, up, NewDeduper())
}

// ProcessWith handles one document using a caller-provided Deduper, so a
// multi-document batch upload can drop duplicates across its documents.
// It returns a typed error (*domain.UnsupportedDocumentError,
// *domain.AIExtractionError or *domain.RateResolutionError) when the whole
// document fails; per-record defects only shrink the batch and surface as
// summary warnings.
func (p *Processor) ProcessWith(ctx context.Context, up Upload, dedup *Deduper) (*Batch, error) {
	log := p.log.With().Str("document_id", up.DocumentID).Str("filename", up.Filename).Logger()

	content, err := p.extractor.Extract(ctx, up.Filename, up.Data)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("kind", string(content.Kind)).Msg("Content extracted")

	candidates, warnings, detected, description, err := p.collectCandidates(ctx, up, content)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(up.SourceCurrency))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(detected))
	}
	if currency == "" {
		currency = p.baseCurrency
	}

	// Per-record validation. Invalid records are dropped with a warning,
	// never fatal to the batch.
	valid := make([]*rawTransaction, 0, len(candidates))
	for i, candidate := range candidates {
		raw, err := normalizeRecord(candidate)
		if err != nil {
			warnings = append(warnings, Warning{
				Kind:    WarnRecordValidation,
				Message: fmt.Sprintf("record %d dropped: %v", i+1, err),
			})
			continue
		}
		valid = append(valid, raw)
	}

	summary := Summary{Currency: currency, Description: description}

	if len(valid) == 0 {
		summary.Warnings = warnings
		if summary.Description == "" {
			summary.Description = describeContent(content.Kind, 0)
		}
		log.Info().Int("warnings", len(warnings)).Msg("Document produced no valid records")
		return &Batch{Summary: summary}, nil
	}

	// One rate per document: all records share the source currency.
	quote, err := p.rates.Rate(ctx, currency, p.baseCurrency, civil.Date{})
	if err != nil {
		return nil, err
	}
	if quote.Fallback {
		warnings = append(warnings, Warning{
			Kind:    WarnRateFallback,
			Message: fmt.Sprintf("rate service unavailable, reused cached %s->%s rate %v", currency, p.baseCurrency, quote.Rate),
		})
	}
	summary.Rate = quote.Rate

	transactions := make([]domain.Transaction, 0, len(valid))
	for _, raw := range valid {
		if dedup.Observe(raw.Date, raw.Amount, raw.Description) {
			warnings = append(warnings, Warning{
				Kind:    WarnDuplicateRecord,
				Message: fmt.Sprintf("duplicate dropped: %s %q %.2f", raw.Date, raw.Description, raw.Amount),
			})
			continue
		}
		transactions = append(transactions, domain.Transaction{
			DocumentID:       up.DocumentID,
			Date:             raw.Date,
			Description:      raw.Description,
			Category:         raw.Category,
			Type:             raw.Type,
			AmountOriginal:   raw.Amount,
			CurrencyOriginal: currency,
			AmountBase:       raw.Amount * quote.Rate,
			ExchangeRate:     quote.Rate,
		})
	}

	summary.Count = len(transactions)
	summary.Warnings = warnings
	if summary.Description == "" {
		summary.Description = describeContent(content.Kind, summary.Count)
	}

	log.Info().
		Int("count", summary.Count).
		Int("warnings", len(warnings)).
		Str("currency", currency).
		Float64("rate", quote.Rate).
		Msg("Document processed")

	return &Batch{Transactions: transactions, Summary: summary}, nil
}

// collectCandidates routes the extracted content: tabular rows go through
// the header mapper, text and images go to the model. A CSV whose header
// cannot be mapped falls back to AI extraction over the raw text, the same
// way an OCR'd document would.
func (p *Processor) collectCandidates(ctx context.Context, up Upload, content *extract.Result) (candidates []map[string]any, warnings []Warning, detectedCurrency, description string, err error) {
	switch content.Kind {
	case extract.KindRows:
		candidates, warnings, mapErr := MapRows(content.Headers, content.Rows)
		if mapErr == nil {
			// Description is filled in later, once the post-validation
			// count is known.
			return candidates, warnings, "", "", nil
		}
		p.log.Warn().Str("filename", up.Filename).Msg("CSV header not mappable, falling back to AI extraction")
		text := string(up.Data)
		if len(text) > csvAITextLimit {
			text = text[:csvAITextLimit]
		}
		out, err := p.parser.ExtractFromText(ctx, "This is a CSV file:\n"+text)
		if err != nil {
			return nil, nil, "", "", err
		}
		return out.Transactions, nil, out.Currency, out.Summary, nil

	case extract.KindText:
		out, err := p.parser.ExtractFromText(ctx, content.Text)
		if err != nil {
			return nil, nil, "", "", err
		}
		return out.Transactions, nil, out.Currency, out.Summary, nil

	case extract.KindImage:
		out, err := p.parser.ExtractFromImages(ctx, content.Pages)
		if err != nil {
			return nil, nil, "", "", err
		}
		return out.Transactions, nil, out.Currency, out.Summary, nil

	default:
		return nil, nil, "", "", &domain.UnsupportedDocumentError{
			Filename: up.Filename,
			Reason:   fmt.Sprintf("unknown content kind %q", content.Kind),
		}
	}
}

// describeContent builds the stored summary line for documents whose parser
// output carried none. The count is the post-validation record count.
func describeContent(kind extract.Kind, count int) string {
	if kind == extract.KindRows {
		return fmt.Sprintf("CSV file with %d transactions", count)
	}
	return fmt.Sprintf("%s with %d transactions", strings.ToUpper(string(kind)), count)
}
