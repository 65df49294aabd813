package pipeline

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/doculedger/doculedger/internal/extract"
	"github.com/doculedger/doculedger/internal/rates"
)

// Extractor turns a raw uploaded file into routed content. Implemented by
// extract.Extractor; mocked in tests.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (*extract.Result, error)
}

// AIParser sends extracted content to the generative model and returns the
// parsed candidate records. Implemented by GeminiParser; mocked in tests.
type AIParser interface {
	ExtractFromText(ctx context.Context, text string) (*ModelOutput, error)
	ExtractFromImages(ctx context.Context, pages []extract.ImagePage) (*ModelOutput, error)
}

// RateResolver resolves one currency conversion rate. Implemented by
// rates.Resolver; mocked in tests.
type RateResolver interface {
	Rate(ctx context.Context, from, to string, asOf civil.Date) (rates.Quote, error)
}
