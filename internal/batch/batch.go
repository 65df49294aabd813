// Package batch runs multi-document uploads through the extraction pipeline
// on a bounded worker pool. Documents fail independently: one bad file never
// stops the rest of the batch, and duplicates are dropped across all
// documents of the same batch.
package batch

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/doculedger/doculedger/internal/domain"
	"github.com/doculedger/doculedger/internal/pipeline"
	"github.com/doculedger/doculedger/internal/store"
)

// DocumentProcessor is the per-document pipeline. Implemented by
// pipeline.Processor; mocked in tests.
type DocumentProcessor interface {
	ProcessWith(ctx context.Context, up pipeline.Upload, dedup *pipeline.Deduper) (*pipeline.Batch, error)
}

// Outcome reports how one document of a batch ended up.
type Outcome struct {
	DocumentID       string
	Filename         string
	Status           domain.DocumentStatus
	TransactionCount int
	Warnings         []pipeline.Warning
	Err              error // the document-fatal error, nil when processed
}

// Service fans batch uploads out over a worker pool and persists the
// results.
type Service struct {
	processor DocumentProcessor
	store     store.Store
	pool      *ants.Pool
	log       zerolog.Logger
}

// NewService creates a batch service with the given pool size.
func NewService(processor DocumentProcessor, st store.Store, poolSize int, log zerolog.Logger) (*Service, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		processor: processor,
		store:     st,
		pool:      pool,
		log:       log,
	}, nil
}

// Run processes every upload of the batch concurrently and returns one
// Outcome per upload, in input order. A shared deduplicator spans the whole
// batch, so a record appearing in two uploaded files is stored once.
func (s *Service) Run(ctx context.Context, uploads []pipeline.Upload) []Outcome {
	outcomes := make([]Outcome, len(uploads))
	dedup := pipeline.NewDeduper()

	var wg sync.WaitGroup
	for i := range uploads {
		i := i
		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = s.processOne(ctx, uploads[i], dedup)
		})
		if submitErr != nil {
			// Pool rejected the task (released or overloaded): run inline so
			// the document still gets a verdict.
			outcomes[i] = s.processOne(ctx, uploads[i], dedup)
			wg.Done()
		}
	}
	wg.Wait()

	return outcomes
}

// processOne takes a single upload through save-pending, pipeline and
// persist. Every failure path marks the document failed so the uploader can
// see what happened.
func (s *Service) processOne(ctx context.Context, up pipeline.Upload, dedup *pipeline.Deduper) Outcome {
	if up.DocumentID == "" {
		up.DocumentID = uuid.NewString()
	}
	log := s.log.With().Str("document_id", up.DocumentID).Str("filename", up.Filename).Logger()

	doc := &domain.Document{
		ID:             up.DocumentID,
		Filename:       up.Filename,
		SourceCurrency: up.SourceCurrency,
		Status:         domain.DocumentPending,
	}
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return Outcome{DocumentID: up.DocumentID, Filename: up.Filename, Status: domain.DocumentFailed, Err: err}
	}

	result, err := s.processor.ProcessWith(ctx, up, dedup)
	if err != nil {
		log.Warn().Err(err).Msg("Document failed")
		if markErr := s.store.MarkDocumentFailed(ctx, up.DocumentID, err.Error()); markErr != nil {
			log.Error().Err(markErr).Msg("Failed to record document failure")
		}
		return Outcome{DocumentID: up.DocumentID, Filename: up.Filename, Status: domain.DocumentFailed, Err: err}
	}

	if len(result.Transactions) > 0 {
		if err := s.store.SaveTransactions(ctx, result.Transactions); err != nil {
			log.Error().Err(err).Msg("Failed to save transactions")
			if markErr := s.store.MarkDocumentFailed(ctx, up.DocumentID, err.Error()); markErr != nil {
				log.Error().Err(markErr).Msg("Failed to record document failure")
			}
			return Outcome{DocumentID: up.DocumentID, Filename: up.Filename, Status: domain.DocumentFailed, Err: err}
		}
	}

	if err := s.store.MarkDocumentProcessed(ctx, up.DocumentID, result.Summary.Count, result.Summary.Description); err != nil {
		log.Error().Err(err).Msg("Failed to finalize document")
		return Outcome{DocumentID: up.DocumentID, Filename: up.Filename, Status: domain.DocumentFailed, Err: err}
	}

	return Outcome{
		DocumentID:       up.DocumentID,
		Filename:         up.Filename,
		Status:           domain.DocumentProcessed,
		TransactionCount: result.Summary.Count,
		Warnings:         result.Summary.Warnings,
	}
}

// Running returns the number of busy workers.
func (s *Service) Running() int {
	return s.pool.Running()
}

// Shutdown releases the worker pool.
func (s *Service) Shutdown() {
	s.log.Info().Int("running_workers", s.pool.Running()).Msg("Shutting down worker pool")
	s.pool.Release()
}
