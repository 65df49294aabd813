// Package handlers implements the HTTP endpoints: batch document upload,
// document and transaction listings, budgets and the monthly summary.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/doculedger/doculedger/internal/api/middleware"
	"github.com/doculedger/doculedger/internal/batch"
	"github.com/doculedger/doculedger/internal/domain"
	"github.com/doculedger/doculedger/internal/pipeline"
	"github.com/doculedger/doculedger/internal/store"
)

// BatchRunner processes a batch of uploads. Implemented by batch.Service;
// mocked in tests.
type BatchRunner interface {
	Run(ctx context.Context, uploads []pipeline.Upload) []batch.Outcome
}

// DocumentsHandler handles document-related endpoints.
type DocumentsHandler struct {
	runner         BatchRunner
	store          store.Store
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(runner BatchRunner, st store.Store, maxUploadBytes int64, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		runner:         runner,
		store:          st,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// uploadResult is the per-document verdict returned to the uploader.
type uploadResult struct {
	DocumentID       string   `json:"document_id"`
	Filename         string   `json:"filename"`
	Status           string   `json:"status"`
	TransactionCount int      `json:"transaction_count"`
	Warnings         []string `json:"warnings,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// UploadDocuments handles POST /api/documents. It accepts a multipart form
// with one or more "files" parts and an optional "currency" field naming the
// source currency of every file in the batch.
func (h *DocumentsHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "At least one file is required")
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(r.FormValue("currency")))

	uploads := make([]pipeline.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Cannot read uploaded file "+fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Cannot read uploaded file "+fh.Filename)
			return
		}
		uploads = append(uploads, pipeline.Upload{
			Filename:       filepath.Base(fh.Filename),
			SourceCurrency: currency,
			Data:           data,
		})
	}

	outcomes := h.runner.Run(r.Context(), uploads)

	results := make([]uploadResult, len(outcomes))
	for i, o := range outcomes {
		res := uploadResult{
			DocumentID:       o.DocumentID,
			Filename:         o.Filename,
			Status:           string(o.Status),
			TransactionCount: o.TransactionCount,
		}
		for _, warn := range o.Warnings {
			res.Warnings = append(res.Warnings, warn.String())
		}
		if o.Err != nil {
			res.Error = o.Err.Error()
		}
		results[i] = res
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// ListDocuments handles GET /api/documents
func (h *DocumentsHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := h.store.ListDocuments(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list documents")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	if documents == nil {
		documents = []domain.Document{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": documents,
		"count":     len(documents),
	})
}

// GetDocument handles GET /api/documents/{id}
func (h *DocumentsHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	doc, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Document not found")
			return
		}
		h.log.Error().Err(err).Str("document_id", id).Msg("Failed to get document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get document")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{id}. The document's
// transactions are removed with it.
func (h *DocumentsHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.store.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Document not found")
			return
		}
		h.log.Error().Err(err).Str("document_id", id).Msg("Failed to delete document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"document_id": id,
		"status":      "deleted",
	})
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	store store.Store
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(st store.Store, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: st, log: log}
}

// ListTransactions handles GET /api/transactions with optional start_date,
// end_date, category, type, document_id and limit query parameters.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.TransactionFilter{
		DocumentID: query.Get("document_id"),
		Category:   domain.Category(query.Get("category")),
		Type:       domain.TransactionType(query.Get("type")),
	}

	if s := query.Get("start_date"); s != "" {
		from, err := civil.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format, want YYYY-MM-DD")
			return
		}
		filter.From = from
	}
	if s := query.Get("end_date"); s != "" {
		to, err := civil.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format, want YYYY-MM-DD")
			return
		}
		filter.To = to
	}
	if s := query.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}
	if filter.Type != "" && !filter.Type.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid type, want income or expense")
		return
	}

	transactions, err := h.store.ListTransactions(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	log zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := domain.Categories()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// BudgetsHandler handles budget-related endpoints.
type BudgetsHandler struct {
	store store.Store
	log   zerolog.Logger
}

// NewBudgetsHandler creates a new budgets handler.
func NewBudgetsHandler(st store.Store, log zerolog.Logger) *BudgetsHandler {
	return &BudgetsHandler{store: st, log: log}
}

// SetBudget handles PUT /api/budgets
func (h *BudgetsHandler) SetBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category     string  `json:"category"`
		MonthlyLimit float64 `json:"monthly_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MonthlyLimit <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "monthly_limit must be positive")
		return
	}
	category := domain.CoerceCategory(req.Category)

	if err := h.store.SetBudget(r.Context(), category, req.MonthlyLimit); err != nil {
		h.log.Error().Err(err).Str("category", string(category)).Msg("Failed to set budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to set budget")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"category":      category,
		"monthly_limit": req.MonthlyLimit,
	})
}

// ListBudgets handles GET /api/budgets
func (h *BudgetsHandler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.store.ListBudgets(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list budgets")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list budgets")
		return
	}
	if budgets == nil {
		budgets = []store.Budget{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"budgets": budgets,
		"count":   len(budgets),
	})
}

// SummaryHandler exposes the aggregated monthly totals.
type SummaryHandler struct {
	store store.Store
	log   zerolog.Logger
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(st store.Store, log zerolog.Logger) *SummaryHandler {
	return &SummaryHandler{store: st, log: log}
}

// MonthlySummary handles GET /api/summary/monthly
func (h *SummaryHandler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	totals, err := h.store.MonthlySummary(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read monthly summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read monthly summary")
		return
	}
	if totals == nil {
		totals = []store.MonthlyTotal{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"months": totals,
		"count":  len(totals),
	})
}
