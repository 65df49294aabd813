// Command ingest runs a batch of documents through the extraction pipeline
// from the command line. References may be local file paths or
// gs://bucket/object URIs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/doculedger/doculedger/internal/batch"
	"github.com/doculedger/doculedger/internal/config"
	"github.com/doculedger/doculedger/internal/docsource"
	"github.com/doculedger/doculedger/internal/domain"
	"github.com/doculedger/doculedger/internal/extract"
	"github.com/doculedger/doculedger/internal/logger"
	"github.com/doculedger/doculedger/internal/ocr"
	"github.com/doculedger/doculedger/internal/pipeline"
	"github.com/doculedger/doculedger/internal/rates"
	"github.com/doculedger/doculedger/internal/store/postgres"
)

func main() {
	var (
		currency = flag.String("currency", "", "source currency of the uploaded files (defaults to AI detection)")
		useGCS   = flag.Bool("gcs", false, "enable Cloud Storage references (requires credentials)")
		archive  = flag.String("archive", "", "gs://bucket/prefix to archive processed originals (implies -gcs)")
		timeout  = flag.Duration("timeout", 10*time.Minute, "overall batch deadline")
	)
	flag.Parse()

	refs := flag.Args()
	if len(refs) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: ingest [-currency SEK] [-gcs] file.pdf statement.csv gs://bucket/receipt.png ...")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig("config")
	if err != nil {
		logger.New("info").Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.New(cfg.Logging.Level)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := postgres.NewDB(ctx, log, &cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer db.Close()
	st := postgres.NewStore(db, log)

	parser, err := pipeline.NewGeminiParser(ctx, pipeline.GeminiParserConfig{
		Model:        cfg.AI.Model,
		Timeout:      cfg.AI.Timeout,
		MaxAttempts:  cfg.AI.MaxAttempts,
		RetryBackoff: cfg.AI.RetryBackoff,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction model client")
	}

	extractor := extract.New(ocr.NewTesseract(cfg.Extract.OCRLanguage), extract.Config{
		MinCharsPerPage: cfg.Extract.OCRMinCharsPerPage,
		RasterDPI:       cfg.Extract.RasterDPI,
		MaxVisionPages:  cfg.Extract.MaxVisionPages,
	})

	resolver := rates.NewResolver(cfg.Rates.Endpoint, cfg.Rates.Timeout, rates.NewCache())
	processor := pipeline.NewProcessor(extractor, parser, resolver, cfg.Rates.BaseCurrency, log)

	batchService, err := batch.NewService(processor, st, cfg.WorkerPool.Size, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create worker pool")
	}
	defer batchService.Shutdown()

	src := docsource.NewLocal()
	if *useGCS || *archive != "" {
		src, err = docsource.New(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
	}
	defer src.Close()

	uploads := make([]pipeline.Upload, 0, len(refs))
	for _, ref := range refs {
		filename, data, err := src.Fetch(ctx, ref)
		if err != nil {
			log.Fatal().Err(err).Str("ref", ref).Msg("Failed to fetch document")
		}
		uploads = append(uploads, pipeline.Upload{
			Filename:       filename,
			SourceCurrency: *currency,
			Data:           data,
		})
	}

	outcomes := batchService.Run(ctx, uploads)

	var failed int
	for i, o := range outcomes {
		switch o.Status {
		case domain.DocumentProcessed:
			fmt.Printf("%-40s processed, %d transactions", o.Filename, o.TransactionCount)
			if len(o.Warnings) > 0 {
				fmt.Printf(" (%d warnings)", len(o.Warnings))
			}
			fmt.Println()
			for _, w := range o.Warnings {
				fmt.Printf("    %s\n", w)
			}
			if *archive != "" {
				if err := src.ArchiveRef(ctx, *archive, o.Filename, uploads[i].Data); err != nil {
					log.Error().Err(err).Str("filename", o.Filename).Msg("Failed to archive original")
				}
			}
		default:
			failed++
			fmt.Printf("%-40s FAILED: %v\n", o.Filename, o.Err)
		}
	}

	if failed > 0 {
		fmt.Printf("\n%d of %d documents failed\n", failed, len(outcomes))
		os.Exit(1)
	}
}
