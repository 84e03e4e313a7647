package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/xhad/medilex/internal/types"
	"github.com/xhad/medilex/pkg/cache"
	"github.com/xhad/medilex/pkg/config"
	"github.com/xhad/medilex/pkg/history"
	"github.com/xhad/medilex/pkg/llm"
	"github.com/xhad/medilex/pkg/logging"
	"github.com/xhad/medilex/pkg/ocr"
	"github.com/xhad/medilex/pkg/pipeline"
	"github.com/xhad/medilex/pkg/processor"
	"github.com/xhad/medilex/pkg/rag"
	"github.com/xhad/medilex/pkg/scraper"
	"github.com/xhad/medilex/pkg/speech"
	"github.com/xhad/medilex/pkg/store"
	"github.com/xhad/medilex/pkg/translate"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	cache     cache.Cache
	store     types.VectorStore
	embedder  types.QueryEmbedder
	generator types.Generator // nil when the provider could not be set up
	retriever *rag.Retriever
	answerer  *rag.Answerer
	history   *history.Store

	closers []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: logging.WithComponent("cli")}

	c, closer, err := cache.New(cache.Config{
		Backend:   cfg.Cache.Backend,
		RedisAddr: cfg.Cache.RedisAddr,
		RedisDB:   cfg.Cache.RedisDB,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.cache = c
	a.closers = append(a.closers, closer)

	vs, err := store.New(ctx, cfg, a.logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	a.store = vs

	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.Embedder.Model,
		BaseURL:   cfg.Embedder.BaseURL,
		BatchSize: cfg.Embedder.BatchSize,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.embedder = llm.NewCachedEmbedder(emb, a.cache, emb.Model(), cfg.Cache.TTL)

	gen, err := llm.NewGenerator(cfg.LLM, nil)
	if err != nil {
		a.logger.Warn().Err(err).Str("provider", cfg.LLM.Provider).Msg("LLM unavailable")
	} else {
		a.generator = gen
	}

	a.retriever = rag.NewRetriever(rag.RetrieverConfig{
		Embedder: a.embedder,
		Store:    a.store,
		TopK:     cfg.RAG.TopK,
	})
	a.answerer, err = rag.NewAnswerer(rag.AnswererConfig{
		Retriever: a.retriever,
		Generator: a.generator,
		Mode:      cfg.RAG.Mode,
		TopK:      cfg.RAG.TopK,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) ingestor(progress func(rag.IngestProgress)) *rag.Ingestor {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		Strategy:        a.cfg.Processor.Strategy,
		ChunkSize:       a.cfg.Processor.ChunkSize,
		ChunkOverlap:    a.cfg.Processor.ChunkOverlap,
		RemoveStopwords: a.cfg.Processor.RemoveStopwords,
	})
	return rag.NewIngestor(rag.IngestorConfig{
		Processor: &p,
		Embedder:  a.embedder,
		Store:     a.store,
		Scraper: scraper.ScraperConfig{
			MaxDepth:          a.cfg.Scraper.MaxDepth,
			RateLimit:         a.cfg.Scraper.RateLimit,
			IgnorePatterns:    a.cfg.Scraper.IgnorePatterns,
			AllowedExtensions: a.cfg.Scraper.AllowedExtensions,
		},
		OnProgress: progress,
	})
}

// chatEngine returns the streaming engine when the provider is Ollama.
func (a *app) chatEngine() *llm.ChatEngine {
	ce, _ := a.generator.(*llm.ChatEngine)
	return ce
}

func (a *app) openHistory() error {
	if !a.cfg.History.Enabled || a.history != nil {
		return nil
	}
	h, err := history.Open(a.cfg.History.Path)
	if err != nil {
		return err
	}
	a.history = h
	a.closers = append(a.closers, h)
	return nil
}

func (a *app) pipeline(targetLang string) (*pipeline.Pipeline, error) {
	if err := a.openHistory(); err != nil {
		return nil, err
	}
	if targetLang == "" {
		targetLang = a.cfg.Translate.Target
	}

	pc := pipeline.Config{
		OCR: ocr.NewTesseract(ocr.Config{
			Binary:  a.cfg.OCR.Binary,
			Lang:    a.cfg.OCR.Lang,
			Timeout: a.cfg.OCR.Timeout,
		}),
		Transcriber: speech.NewWhisper(speech.WhisperConfig{
			Binary:  a.cfg.Speech.WhisperBinary,
			Model:   a.cfg.Speech.WhisperModel,
			Timeout: a.cfg.Speech.Timeout,
		}),
		Synthesizer: speech.NewEspeak(speech.EspeakConfig{
			Binary:  a.cfg.Speech.TTSBinary,
			Voice:   a.cfg.Speech.Voice,
			Timeout: a.cfg.Speech.Timeout,
		}),
		Answerer:   a.answerer,
		SourceLang: a.cfg.Translate.Source,
		TargetLang: targetLang,
		OutputDir:  a.cfg.Speech.OutputDir,
	}
	if a.generator != nil {
		pc.Translator = translate.NewLLMTranslator(a.generator, translate.Config{
			Cache:    a.cache,
			CacheTTL: a.cfg.Cache.TTL,
		})
	}
	if a.history != nil {
		pc.History = a.history
	}
	return pipeline.New(pc)
}

func (a *app) Close() {
	if a.cache != nil && a.logger.Debug().Enabled() {
		st := a.cache.Stats()
		a.logger.Debug().
			Int64("hits", st.Hits).
			Int64("misses", st.Misses).
			Int64("sets", st.Sets).
			Int64("evictions", st.Evictions).
			Int("size", st.CurrentSize).
			Msg("cache stats")
	}
	if a.store != nil {
		a.store.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close failed")
		}
	}
}
