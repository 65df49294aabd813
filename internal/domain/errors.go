package domain

import "fmt"

// The three document-fatal failure modes. Each one fails a single document;
// other documents in the same batch keep processing. Per-record defects are
// never errors, they are collected as warnings on the batch summary.

// UnsupportedDocumentError means the uploaded file could not be read or its
// format was not recognized.
type UnsupportedDocumentError struct {
	Filename string
	Reason   string
}

func (e *UnsupportedDocumentError) Error() string {
	return fmt.Sprintf("unsupported document %q: %s", e.Filename, e.Reason)
}

// AIExtractionError means the model call failed after a retry, or its output
// could not be parsed even after the recovery pass.
type AIExtractionError struct {
	Reason string
	Err    error // underlying transport or parse error, may be nil
}

func (e *AIExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ai extraction failed: %s", e.Reason)
}

func (e *AIExtractionError) Unwrap() error { return e.Err }

// RateResolutionError means no usable exchange rate could be obtained, not
// even a cached fallback from earlier in the session.
type RateResolutionError struct {
	From string
	To   string
	Err  error
}

func (e *RateResolutionError) Error() string {
	return fmt.Sprintf("no usable exchange rate %s->%s: %v", e.From, e.To, e.Err)
}

func (e *RateResolutionError) Unwrap() error { return e.Err }
