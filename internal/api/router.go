// Package api assembles the HTTP surface: routes plus the middleware chain.
package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/doculedger/doculedger/internal/api/handlers"
	"github.com/doculedger/doculedger/internal/api/middleware"
	"github.com/doculedger/doculedger/internal/store"
)

// NewRouter builds the full HTTP handler with all routes and middleware
// applied.
func NewRouter(runner handlers.BatchRunner, st store.Store, maxUploadBytes int64, log zerolog.Logger) http.Handler {
	documentsHandler := handlers.NewDocumentsHandler(runner, st, maxUploadBytes, log)
	transactionsHandler := handlers.NewTransactionsHandler(st, log)
	categoriesHandler := handlers.NewCategoriesHandler(log)
	budgetsHandler := handlers.NewBudgetsHandler(st, log)
	summaryHandler := handlers.NewSummaryHandler(st, log)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/documents", documentsHandler.UploadDocuments)
	mux.HandleFunc("GET /api/documents", documentsHandler.ListDocuments)
	mux.HandleFunc("GET /api/documents/{id}", documentsHandler.GetDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", documentsHandler.DeleteDocument)

	mux.HandleFunc("GET /api/transactions", transactionsHandler.ListTransactions)
	mux.HandleFunc("GET /api/categories", categoriesHandler.ListCategories)

	mux.HandleFunc("PUT /api/budgets", budgetsHandler.SetBudget)
	mux.HandleFunc("GET /api/budgets", budgetsHandler.ListBudgets)

	mux.HandleFunc("GET /api/summary/monthly", summaryHandler.MonthlySummary)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)
}
