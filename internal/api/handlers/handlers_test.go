package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculedger/doculedger/internal/batch"
	"github.com/doculedger/doculedger/internal/domain"
	"github.com/doculedger/doculedger/internal/pipeline"
	"github.com/doculedger/doculedger/internal/store"
)

type fakeRunner struct {
	uploads []pipeline.Upload
}

func (f *fakeRunner) Run(_ context.Context, uploads []pipeline.Upload) []batch.Outcome {
	f.uploads = uploads
	outcomes := make([]batch.Outcome, len(uploads))
	for i, up := range uploads {
		outcomes[i] = batch.Outcome{
			DocumentID:       "doc-" + up.Filename,
			Filename:         up.Filename,
			Status:           domain.DocumentProcessed,
			TransactionCount: 1,
		}
	}
	return outcomes
}

type fakeStore struct {
	documents    []domain.Document
	transactions []domain.Transaction
	budgets      []store.Budget
	lastFilter   store.TransactionFilter
	missing      bool
}

func (f *fakeStore) SaveDocument(context.Context, *domain.Document) error { return nil }
func (f *fakeStore) MarkDocumentProcessed(context.Context, string, int, string) error {
	return nil
}
func (f *fakeStore) MarkDocumentFailed(context.Context, string, string) error { return nil }

func (f *fakeStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	if f.missing {
		return nil, store.ErrDocumentNotFound
	}
	return &domain.Document{ID: id, Filename: "statement.csv", Status: domain.DocumentProcessed}, nil
}

func (f *fakeStore) ListDocuments(context.Context) ([]domain.Document, error) {
	return f.documents, nil
}

func (f *fakeStore) DeleteDocument(context.Context, string) error {
	if f.missing {
		return store.ErrDocumentNotFound
	}
	return nil
}

func (f *fakeStore) SaveTransactions(context.Context, []domain.Transaction) error { return nil }

func (f *fakeStore) ListTransactions(_ context.Context, filter store.TransactionFilter) ([]domain.Transaction, error) {
	f.lastFilter = filter
	return f.transactions, nil
}

func (f *fakeStore) SetBudget(context.Context, domain.Category, float64) error { return nil }
func (f *fakeStore) ListBudgets(context.Context) ([]store.Budget, error)      { return f.budgets, nil }
func (f *fakeStore) MonthlySummary(context.Context) ([]store.MonthlyTotal, error) {
	return nil, nil
}

func multipartBody(t *testing.T, currency string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if currency != "" {
		require.NoError(t, w.WriteField("currency", currency))
	}
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadDocuments(t *testing.T) {
	runner := &fakeRunner{}
	h := NewDocumentsHandler(runner, &fakeStore{}, 1<<20, zerolog.Nop())

	body, contentType := multipartBody(t, "sek", map[string]string{
		"january.csv":  "Datum,Belopp\n2024-01-15,-120.50\n",
		"february.csv": "Datum,Belopp\n2024-02-15,-80.00\n",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.UploadDocuments(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []uploadResult `json:"results"`
		Count   int            `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	for _, res := range resp.Results {
		assert.Equal(t, "processed", res.Status)
		assert.Equal(t, 1, res.TransactionCount)
	}

	// The currency field applies to every file of the batch, uppercased.
	require.Len(t, runner.uploads, 2)
	for _, up := range runner.uploads {
		assert.Equal(t, "SEK", up.SourceCurrency)
	}
}

func TestUploadDocuments_NoFiles(t *testing.T) {
	h := NewDocumentsHandler(&fakeRunner{}, &fakeStore{}, 1<<20, zerolog.Nop())

	body, contentType := multipartBody(t, "SEK", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.UploadDocuments(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadDocuments_NotMultipart(t *testing.T) {
	h := NewDocumentsHandler(&fakeRunner{}, &fakeStore{}, 1<<20, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader("not a form"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()

	h.UploadDocuments(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDocument_NotFound(t *testing.T) {
	h := NewDocumentsHandler(&fakeRunner{}, &fakeStore{missing: true}, 1<<20, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/documents/nope", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()

	h.GetDocument(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDocument(t *testing.T) {
	h := NewDocumentsHandler(&fakeRunner{}, &fakeStore{}, 1<<20, zerolog.Nop())

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/doc-1", nil)
	req.SetPathValue("id", "doc-1")
	rec := httptest.NewRecorder()

	h.DeleteDocument(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "deleted")
}

func TestListTransactions_Filters(t *testing.T) {
	st := &fakeStore{}
	h := NewTransactionsHandler(st, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet,
		"/api/transactions?start_date=2024-01-01&end_date=2024-01-31&category=groceries&type=expense&limit=10", nil)
	rec := httptest.NewRecorder()

	h.ListTransactions(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, domain.CategoryGroceries, st.lastFilter.Category)
	assert.Equal(t, domain.TypeExpense, st.lastFilter.Type)
	assert.Equal(t, 10, st.lastFilter.Limit)
	assert.Equal(t, 2024, st.lastFilter.From.Year)
	assert.Equal(t, 31, st.lastFilter.To.Day)

	// Body is a bare array.
	assert.True(t, strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "["))
}

func TestListTransactions_BadInput(t *testing.T) {
	h := NewTransactionsHandler(&fakeStore{}, zerolog.Nop())

	tests := []string{
		"/api/transactions?start_date=January",
		"/api/transactions?end_date=2024-13-45",
		"/api/transactions?type=transfer",
		"/api/transactions?limit=-5",
	}
	for _, target := range tests {
		rec := httptest.NewRecorder()
		h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestListCategories(t *testing.T) {
	h := NewCategoriesHandler(zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListCategories(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Categories []domain.Category `json:"categories"`
		Count      int               `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, len(domain.Categories()), resp.Count)
	assert.Contains(t, resp.Categories, domain.CategoryGroceries)
}

func TestSetBudget(t *testing.T) {
	h := NewBudgetsHandler(&fakeStore{}, zerolog.Nop())

	t.Run("success with synonym category", func(t *testing.T) {
		body := strings.NewReader(`{"category":"Food","monthly_limit":4000}`)
		rec := httptest.NewRecorder()
		h.SetBudget(rec, httptest.NewRequest(http.MethodPut, "/api/budgets", body))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "groceries")
	})

	t.Run("non-positive limit rejected", func(t *testing.T) {
		body := strings.NewReader(`{"category":"groceries","monthly_limit":0}`)
		rec := httptest.NewRecorder()
		h.SetBudget(rec, httptest.NewRequest(http.MethodPut, "/api/budgets", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
