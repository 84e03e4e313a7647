// Package rag builds and queries the medical knowledge base.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/internal/types"
	"github.com/xhad/medilex/pkg/corpus"
	"github.com/xhad/medilex/pkg/logging"
	"github.com/xhad/medilex/pkg/metrics"
	"github.com/xhad/medilex/pkg/scraper"
)

// ErrNoDocuments is returned when a source yields nothing to ingest.
var ErrNoDocuments = errors.New("no documents to ingest")

// IngestReport summarises one ingestion run.
type IngestReport struct {
	Documents int
	Chunks    int
}

// IngestProgress is reported after each stored batch.
type IngestProgress struct {
	DocumentsDone  int
	DocumentsTotal int
	ChunksStored   int
}

type IngestorConfig struct {
	Processor types.Processor
	Embedder  types.Embedder
	Store     types.VectorStore
	// Scraper is the template for IngestURL; BaseURL is filled per call.
	Scraper    scraper.ScraperConfig
	BatchSize  int // documents per embed+store round, default 8
	OnProgress func(IngestProgress)
	Logger     *zerolog.Logger
}

// Ingestor runs load, chunk, embed and store.
type Ingestor struct {
	config IngestorConfig
	logger zerolog.Logger
}

func NewIngestor(config IngestorConfig) *Ingestor {
	if config.BatchSize <= 0 {
		config.BatchSize = 8
	}
	return &Ingestor{config: config, logger: logging.Or(config.Logger, "ingest")}
}

// IngestDir ingests every .txt file in dir.
func (in *Ingestor) IngestDir(ctx context.Context, dir string) (IngestReport, error) {
	docs, err := corpus.LoadDir(dir)
	if err != nil {
		return IngestReport{}, err
	}
	if len(docs) == 0 {
		return IngestReport{}, fmt.Errorf("%w: no .txt files in %s", ErrNoDocuments, dir)
	}
	return in.IngestDocuments(ctx, docs)
}

// IngestURL crawls url and ingests the pages found.
func (in *Ingestor) IngestURL(ctx context.Context, url string) (IngestReport, error) {
	cfg := in.config.Scraper
	cfg.BaseURL = url
	if cfg.Logger == nil {
		cfg.Logger = &in.logger
	}
	s, err := scraper.NewWithConfig(cfg)
	if err != nil {
		return IngestReport{}, fmt.Errorf("scraper: %w", err)
	}

	docs, err := s.Scrape(ctx, url)
	if err != nil {
		return IngestReport{}, fmt.Errorf("scraping %s: %w", url, err)
	}
	if len(docs) == 0 {
		return IngestReport{}, fmt.Errorf("%w: nothing scraped from %s", ErrNoDocuments, url)
	}
	return in.IngestDocuments(ctx, docs)
}

func (in *Ingestor) IngestDocuments(ctx context.Context, docs []models.Document) (report IngestReport, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStage(metrics.StageIngest, start, err) }()

	processed, err := in.config.Processor.Process(docs)
	if err != nil {
		return IngestReport{}, fmt.Errorf("processing documents: %w", err)
	}
	if len(processed) == 0 {
		return IngestReport{}, fmt.Errorf("%w: all documents were empty", ErrNoDocuments)
	}

	for begin := 0; begin < len(processed); begin += in.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := min(begin+in.config.BatchSize, len(processed))
		batch := processed[begin:end]

		if err := in.embed(ctx, batch); err != nil {
			return report, err
		}
		if err := in.config.Store.Store(ctx, batch); err != nil {
			return report, fmt.Errorf("storing documents: %w", err)
		}

		for _, d := range batch {
			report.Chunks += len(d.Chunks)
		}
		report.Documents = end
		metrics.RecordIngested(len(batch))

		if in.config.OnProgress != nil {
			in.config.OnProgress(IngestProgress{
				DocumentsDone:  end,
				DocumentsTotal: len(processed),
				ChunksStored:   report.Chunks,
			})
		}
	}

	in.logger.Info().
		Int("documents", report.Documents).
		Int("chunks", report.Chunks).
		Dur("took", time.Since(start)).
		Msg("ingestion complete")
	return report, nil
}

// embed fills Embedding for every document in batch with one embedder call.
func (in *Ingestor) embed(ctx context.Context, batch []models.ProcessedDocument) error {
	var texts []string
	for _, d := range batch {
		texts = append(texts, d.Chunks...)
	}

	vecs, err := in.config.Embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return fmt.Errorf("creating embeddings: %w", err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("creating embeddings: got %d vectors for %d chunks", len(vecs), len(texts))
	}

	offset := 0
	for i := range batch {
		n := len(batch[i].Chunks)
		batch[i].Embedding = vecs[offset : offset+n]
		offset += n
	}
	return nil
}
