// Package pipeline turns a prescription image, typed symptoms or a voice note into
// an explained, optionally translated and spoken, Analysis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/internal/types"
	"github.com/xhad/medilex/pkg/logging"
	"github.com/xhad/medilex/pkg/metrics"
	"github.com/xhad/medilex/pkg/ner"
	"github.com/xhad/medilex/pkg/rag"
)

var (
	ErrNoInput          = errors.New("please provide input")
	ErrStageUnavailable = errors.New("stage not configured")
	ErrInvalidSource    = errors.New("invalid input source")
)

// CareTips is appended to every explanation.
const CareTips = "Diet & Rest Suggestions:\n" +
	"- Stay hydrated\n" +
	"- Eat light food (khichdi, soup, fruits)\n" +
	"- Avoid oily/spicy food\n" +
	"- Take proper rest\n" +
	"- Consult doctor if symptoms worsen"

const (
	imageQueryPrefix = "Explain this prescription or symptoms in simple terms:\n"
	textQueryPrefix  = "Explain in simple, patient-friendly terms: "
)

// Input is one request. Exactly one of ImagePath, Text or AudioPath is used,
// chosen by Source; an empty Source is inferred from whichever field is set.
type Input struct {
	Source    models.InputSource
	ImagePath string
	Text      string
	AudioPath string
	Translate bool
	Speak     bool
}

type Answerer interface {
	Answer(ctx context.Context, question string) (*rag.Answer, error)
}

type HistoryWriter interface {
	Save(ctx context.Context, a *models.Analysis) error
}

// Config wires the stages. Only Answerer is required; a missing stage fails
// the inputs that need it.
type Config struct {
	OCR         types.TextExtractor
	Transcriber types.Transcriber
	Recognizer  *ner.Recognizer
	Answerer    Answerer
	Translator  types.Translator
	Synthesizer types.Synthesizer
	History     HistoryWriter

	SourceLang string // default en
	TargetLang string // default hi
	OutputDir  string // speech output, default "output"
	Logger     *zerolog.Logger
}

type Pipeline struct {
	config Config
	logger zerolog.Logger
	now    func() time.Time
}

func New(config Config) (*Pipeline, error) {
	if config.Answerer == nil {
		return nil, fmt.Errorf("answerer: %w", ErrStageUnavailable)
	}
	if config.Recognizer == nil {
		config.Recognizer = ner.New()
	}
	if config.SourceLang == "" {
		config.SourceLang = "en"
	}
	if config.TargetLang == "" {
		config.TargetLang = "hi"
	}
	if config.OutputDir == "" {
		config.OutputDir = "output"
	}
	return &Pipeline{
		config: config,
		logger: logging.Or(config.Logger, "pipeline"),
		now:    time.Now,
	}, nil
}

func (in Input) source() models.InputSource {
	if in.Source != "" {
		return in.Source
	}
	switch {
	case in.ImagePath != "":
		return models.SourceImage
	case in.AudioPath != "":
		return models.SourceAudio
	default:
		return models.SourceText
	}
}

// Analyze runs one input through OCR or transcription, entity extraction,
// retrieval and the optional translation and speech stages.
func (p *Pipeline) Analyze(ctx context.Context, in Input) (*models.Analysis, error) {
	source := in.source()
	if !source.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}

	text, err := p.inputText(ctx, source, in)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoInput
	}

	a := &models.Analysis{
		ID:        uuid.NewString(),
		Source:    source,
		InputText: text,
		CreatedAt: p.now().UTC(),
		Sources:   []string{},
	}
	log := p.logger.With().Str("analysis_id", a.ID).Str("source", string(source)).Logger()

	start := time.Now()
	a.Entities = p.config.Recognizer.ExtractEntities(text)
	metrics.ObserveStage(metrics.StageNER, start, nil)
	log.Debug().Int("medications", len(a.Entities.Medications)).Msg("entities extracted")

	if source == models.SourceImage {
		a.Query = imageQueryPrefix + text
	} else {
		a.Query = textQueryPrefix + text
	}

	ans, err := p.config.Answerer.Answer(ctx, a.Query)
	if err != nil {
		return nil, fmt.Errorf("answering: %w", err)
	}
	a.Answer = ans.Text
	a.Sources = append(a.Sources, ans.Sources...)
	if ans.Warning != "" {
		a.Warnings = append(a.Warnings, ans.Warning)
	}

	a.CareTips = CareTips
	a.FinalAnswer = a.Answer + "\n\n" + CareTips

	if in.Translate {
		p.translate(ctx, a, log)
	}
	if in.Speak {
		p.speak(ctx, a, log)
	}

	metrics.RecordAnalysis(string(source), len(a.Entities.Medications))
	p.save(ctx, a, log)

	log.Info().Int("warnings", len(a.Warnings)).Msg("analysis complete")
	return a, nil
}

func (p *Pipeline) inputText(ctx context.Context, source models.InputSource, in Input) (text string, err error) {
	switch source {
	case models.SourceImage:
		if in.ImagePath == "" {
			return "", ErrNoInput
		}
		if p.config.OCR == nil {
			return "", fmt.Errorf("ocr: %w", ErrStageUnavailable)
		}
		start := time.Now()
		defer func() { metrics.ObserveStage(metrics.StageOCR, start, err) }()
		text, err = p.config.OCR.ExtractText(ctx, in.ImagePath)
		if err != nil {
			return "", fmt.Errorf("ocr: %w", err)
		}
		return text, nil

	case models.SourceAudio:
		if in.AudioPath == "" {
			return "", ErrNoInput
		}
		if p.config.Transcriber == nil {
			return "", fmt.Errorf("transcription: %w", ErrStageUnavailable)
		}
		start := time.Now()
		defer func() { metrics.ObserveStage(metrics.StageTranscribe, start, err) }()
		text, err = p.config.Transcriber.Transcribe(ctx, in.AudioPath)
		if err != nil {
			return "", fmt.Errorf("transcription: %w", err)
		}
		return text, nil

	default:
		return strings.TrimSpace(in.Text), nil
	}
}

func (p *Pipeline) translate(ctx context.Context, a *models.Analysis, log zerolog.Logger) {
	if p.config.Translator == nil {
		a.Warnings = append(a.Warnings, fmt.Sprintf("translation skipped: %v", ErrStageUnavailable))
		return
	}

	start := time.Now()
	out, err := p.config.Translator.Translate(ctx, a.Answer, p.config.SourceLang, p.config.TargetLang)
	metrics.ObserveStage(metrics.StageTranslate, start, err)
	if err != nil {
		log.Warn().Err(err).Msg("translation skipped")
		a.Warnings = append(a.Warnings, fmt.Sprintf("translation skipped: %v", err))
		return
	}
	a.Translation = out
	a.TranslationLang = p.config.TargetLang
}

func (p *Pipeline) speak(ctx context.Context, a *models.Analysis, log zerolog.Logger) {
	if p.config.Synthesizer == nil {
		a.Warnings = append(a.Warnings, fmt.Sprintf("tts failed: %v", ErrStageUnavailable))
		return
	}

	start := time.Now()
	out := filepath.Join(p.config.OutputDir, a.ID+".wav")
	err := os.MkdirAll(p.config.OutputDir, 0o755)
	if err == nil {
		err = p.config.Synthesizer.Synthesize(ctx, a.FinalAnswer, out)
	}
	metrics.ObserveStage(metrics.StageSpeak, start, err)
	if err != nil {
		log.Warn().Err(err).Msg("tts failed")
		a.Warnings = append(a.Warnings, fmt.Sprintf("tts failed: %v", err))
		return
	}
	a.AudioPath = out
}

func (p *Pipeline) save(ctx context.Context, a *models.Analysis, log zerolog.Logger) {
	if p.config.History == nil {
		return
	}
	start := time.Now()
	err := p.config.History.Save(ctx, a)
	metrics.ObserveStage(metrics.StageHistory, start, err)
	if err != nil {
		log.Warn().Err(err).Msg("history not saved")
		a.Warnings = append(a.Warnings, fmt.Sprintf("history not saved: %v", err))
	}
}
