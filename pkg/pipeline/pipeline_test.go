package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/pipeline"
	"github.com/xhad/medilex/pkg/rag"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const prescription = "RX\nParacetamol 500 mg - 1 tab TID\nCetirizine 10 mg OD"

type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) ExtractText(context.Context, string) (string, error) { return f.text, f.err }

type fakeTranscriber struct{ text string }

func (f fakeTranscriber) Transcribe(context.Context, string) (string, error) { return f.text, nil }

type fakeAnswerer struct {
	mu      sync.Mutex
	queries []string
	warning string
	err     error
}

func (f *fakeAnswerer) Answer(_ context.Context, q string) (*rag.Answer, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &rag.Answer{Text: "Paracetamol treats fever.", Sources: []string{"fever.txt"}, Warning: f.warning}, nil
}

type fakeTranslator struct{ err error }

func (f fakeTranslator) Translate(_ context.Context, text, src, dst string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("[%s->%s] %s", src, dst, text), nil
}

type fakeSynth struct {
	err  error
	text string
}

func (f *fakeSynth) Synthesize(_ context.Context, text, out string) error {
	if f.err != nil {
		return f.err
	}
	f.text = text
	return os.WriteFile(out, []byte("RIFF"), 0o644)
}

type memHistory struct {
	mu    sync.Mutex
	saved []*models.Analysis
	err   error
}

func (h *memHistory) Save(_ context.Context, a *models.Analysis) error {
	if h.err != nil {
		return h.err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = append(h.saved, a)
	return nil
}

func TestAnalyze_Image(t *testing.T) {
	ans := &fakeAnswerer{}
	hist := &memHistory{}
	p, err := pipeline.New(pipeline.Config{
		OCR:      fakeOCR{text: prescription},
		Answerer: ans,
		History:  hist,
	})
	require.NoError(t, err)

	a, err := p.Analyze(context.Background(), pipeline.Input{ImagePath: "rx.png"})
	require.NoError(t, err)

	assert.Equal(t, models.SourceImage, a.Source)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, prescription, a.InputText)
	require.Len(t, a.Entities.Medications, 2)
	assert.Equal(t, "Paracetamol", a.Entities.Medications[0].Name)
	assert.Equal(t, "Three times daily", a.Entities.Medications[0].FreqExpanded)

	assert.Equal(t, "Explain this prescription or symptoms in simple terms:\n"+prescription, a.Query)
	assert.Equal(t, []string{a.Query}, ans.queries)
	assert.Equal(t, "Paracetamol treats fever.", a.Answer)
	assert.Equal(t, "Paracetamol treats fever.\n\n"+pipeline.CareTips, a.FinalAnswer)
	assert.Equal(t, []string{"fever.txt"}, a.Sources)
	assert.Empty(t, a.Warnings)
	assert.Empty(t, a.Translation)

	require.Len(t, hist.saved, 1)
	assert.Equal(t, a.ID, hist.saved[0].ID)
}

func TestAnalyze_TextTrimmed(t *testing.T) {
	ans := &fakeAnswerer{}
	p, err := pipeline.New(pipeline.Config{Answerer: ans})
	require.NoError(t, err)

	a, err := p.Analyze(context.Background(), pipeline.Input{Text: "  I have fever and headache \n"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceText, a.Source)
	assert.Equal(t, "Explain in simple, patient-friendly terms: I have fever and headache", a.Query)
	assert.Equal(t, []string{"fever", "headache"}, a.Entities.Symptoms)
}

func TestAnalyze_Audio(t *testing.T) {
	p, err := pipeline.New(pipeline.Config{
		Transcriber: fakeTranscriber{text: "I have a cough"},
		Answerer:    &fakeAnswerer{},
	})
	require.NoError(t, err)

	a, err := p.Analyze(context.Background(), pipeline.Input{Source: models.SourceAudio, AudioPath: "note.wav"})
	require.NoError(t, err)
	assert.Equal(t, "Explain in simple, patient-friendly terms: I have a cough", a.Query)
	assert.Equal(t, []string{"cough"}, a.Entities.Symptoms)
}

func TestAnalyze_Errors(t *testing.T) {
	ans := &fakeAnswerer{}
	p, err := pipeline.New(pipeline.Config{Answerer: ans, OCR: fakeOCR{text: " \n "}})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.Analyze(ctx, pipeline.Input{Text: "   "})
	assert.ErrorIs(t, err, pipeline.ErrNoInput)

	_, err = p.Analyze(ctx, pipeline.Input{ImagePath: "blank.png"})
	assert.ErrorIs(t, err, pipeline.ErrNoInput)

	_, err = p.Analyze(ctx, pipeline.Input{Source: models.SourceAudio, AudioPath: "a.wav"})
	assert.ErrorIs(t, err, pipeline.ErrStageUnavailable)

	_, err = p.Analyze(ctx, pipeline.Input{Source: "video"})
	assert.ErrorIs(t, err, pipeline.ErrInvalidSource)

	assert.Empty(t, ans.queries)

	_, err = pipeline.New(pipeline.Config{})
	assert.ErrorIs(t, err, pipeline.ErrStageUnavailable)
}

func TestAnalyze_OCRFailure(t *testing.T) {
	p, err := pipeline.New(pipeline.Config{Answerer: &fakeAnswerer{}, OCR: fakeOCR{err: errors.New("tesseract not found")}})
	require.NoError(t, err)

	_, err = p.Analyze(context.Background(), pipeline.Input{ImagePath: "rx.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract not found")
}

func TestAnalyze_AnswerFailureIsFatal(t *testing.T) {
	p, err := pipeline.New(pipeline.Config{Answerer: &fakeAnswerer{err: errors.New("store down")}})
	require.NoError(t, err)

	_, err = p.Analyze(context.Background(), pipeline.Input{Text: "fever"})
	assert.ErrorContains(t, err, "store down")
}

func TestAnalyze_TranslateAndSpeak(t *testing.T) {
	synth := &fakeSynth{}
	out := filepath.Join(t.TempDir(), "speech")
	p, err := pipeline.New(pipeline.Config{
		Answerer:    &fakeAnswerer{warning: "llm answer failed"},
		Translator:  fakeTranslator{},
		Synthesizer: synth,
		OutputDir:   out,
	})
	require.NoError(t, err)

	a, err := p.Analyze(context.Background(), pipeline.Input{Text: "fever", Translate: true, Speak: true})
	require.NoError(t, err)

	assert.Equal(t, "[en->hi] Paracetamol treats fever.", a.Translation)
	assert.Equal(t, "hi", a.TranslationLang)
	assert.Equal(t, filepath.Join(out, a.ID+".wav"), a.AudioPath)
	assert.FileExists(t, a.AudioPath)
	assert.Equal(t, a.FinalAnswer, synth.text)
	assert.Equal(t, []string{"llm answer failed"}, a.Warnings)
}

func TestAnalyze_DegradedStages(t *testing.T) {
	p, err := pipeline.New(pipeline.Config{
		Answerer:    &fakeAnswerer{},
		Translator:  fakeTranslator{err: errors.New("model offline")},
		Synthesizer: &fakeSynth{err: errors.New("espeak-ng missing")},
		History:     &memHistory{err: errors.New("disk full")},
		OutputDir:   t.TempDir(),
	})
	require.NoError(t, err)

	a, err := p.Analyze(context.Background(), pipeline.Input{Text: "fever", Translate: true, Speak: true})
	require.NoError(t, err)

	assert.Empty(t, a.Translation)
	assert.Empty(t, a.AudioPath)
	assert.Equal(t, []string{
		"translation skipped: model offline",
		"tts failed: espeak-ng missing",
		"history not saved: disk full",
	}, a.Warnings)
}

func TestAnalyze_MissingOptionalStages(t *testing.T) {
	p, err := pipeline.New(pipeline.Config{Answerer: &fakeAnswerer{}})
	require.NoError(t, err)

	a, err := p.Analyze(context.Background(), pipeline.Input{Text: "fever", Translate: true, Speak: true})
	require.NoError(t, err)
	require.Len(t, a.Warnings, 2)
	assert.True(t, strings.HasPrefix(a.Warnings[0], "translation skipped: "))
	assert.True(t, strings.HasPrefix(a.Warnings[1], "tts failed: "))
}

func TestAnalyzeBatch_KeepsOrder(t *testing.T) {
	hist := &memHistory{}
	p, err := pipeline.New(pipeline.Config{Answerer: &fakeAnswerer{}, History: hist})
	require.NoError(t, err)

	inputs := make([]pipeline.Input, 20)
	for i := range inputs {
		inputs[i] = pipeline.Input{Text: fmt.Sprintf("fever day %d", i)}
	}
	inputs[7] = pipeline.Input{Text: " "}

	results := p.AnalyzeBatch(context.Background(), inputs, 4)
	require.Len(t, results, len(inputs))
	for i, r := range results {
		if i == 7 {
			assert.ErrorIs(t, r.Err, pipeline.ErrNoInput)
			assert.Nil(t, r.Analysis)
			continue
		}
		require.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("fever day %d", i), r.Analysis.InputText)
	}
	assert.Len(t, hist.saved, 19)
}

type blockingAnswerer struct {
	started atomic.Int32
	release chan struct{}
}

func (b *blockingAnswerer) Answer(ctx context.Context, _ string) (*rag.Answer, error) {
	b.started.Add(1)
	select {
	case <-b.release:
		return &rag.Answer{Text: "ok"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAnalyzeBatch_Cancelled(t *testing.T) {
	ans := &blockingAnswerer{release: make(chan struct{})}
	p, err := pipeline.New(pipeline.Config{Answerer: ans})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	inputs := []pipeline.Input{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}}

	done := make(chan []pipeline.BatchResult)
	go func() { done <- p.AnalyzeBatch(ctx, inputs, 2) }()

	require.Eventually(t, func() bool { return ans.started.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	results := <-done

	require.Len(t, results, 4)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestAnalyzeBatch_Empty(t *testing.T) {
	p, err := pipeline.New(pipeline.Config{Answerer: &fakeAnswerer{}})
	require.NoError(t, err)
	assert.Empty(t, p.AnalyzeBatch(context.Background(), nil, 3))
}
