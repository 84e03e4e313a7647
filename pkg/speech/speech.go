// Package speech converts recorded questions to text and answers to audio
// using the whisper and espeak-ng command line tools.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/xhad/medilex/pkg/logging"
)

var (
	ErrEmptyText        = errors.New("nothing to synthesize")
	ErrAudioNotFound    = errors.New("audio file not found")
	ErrUnsupportedAudio = errors.New("unsupported audio format")
	ErrNoTranscript     = errors.New("whisper produced no transcript")
)

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
}

// SupportedAudio reports whether ext (with leading dot) can be transcribed.
func SupportedAudio(ext string) bool {
	return audioExtensions[strings.ToLower(ext)]
}

type WhisperConfig struct {
	Binary  string // default "whisper"
	Model   string // default "base"
	Timeout time.Duration
	Logger  *zerolog.Logger
}

// WhisperTranscriber runs the openai-whisper CLI and reads its JSON output.
type WhisperTranscriber struct {
	config WhisperConfig
	logger zerolog.Logger
}

func NewWhisper(config WhisperConfig) *WhisperTranscriber {
	if config.Binary == "" {
		config.Binary = "whisper"
	}
	if config.Model == "" {
		config.Model = "base"
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Minute
	}
	return &WhisperTranscriber{config: config, logger: logging.Or(config.Logger, "whisper")}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	ext := filepath.Ext(audioPath)
	if !SupportedAudio(ext) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAudio, ext)
	}
	if _, err := os.Stat(audioPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrAudioNotFound, audioPath)
		}
		return "", err
	}

	outDir, err := os.MkdirTemp("", "medilex-whisper-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(outDir)

	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	start := time.Now()
	if err := run(ctx, w.config.Binary, nil,
		audioPath,
		"--model", w.config.Model,
		"--output_format", "json",
		"--output_dir", outDir,
	); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), ext)
	data, err := os.ReadFile(filepath.Join(outDir, stem+".json"))
	if err != nil {
		return "", fmt.Errorf("whisper: reading transcript: %w", err)
	}

	result := gjson.GetBytes(data, "text")
	if !result.Exists() {
		return "", ErrNoTranscript
	}
	text := strings.TrimSpace(result.String())

	w.logger.Debug().
		Str("audio", audioPath).
		Str("language", gjson.GetBytes(data, "language").String()).
		Dur("took", time.Since(start)).
		Msg("transcription complete")
	return text, nil
}

type EspeakConfig struct {
	Binary  string // default "espeak-ng"
	Voice   string // default "en"
	Timeout time.Duration
	Logger  *zerolog.Logger
}

// EspeakSynthesizer writes speech to a WAV file with espeak-ng.
type EspeakSynthesizer struct {
	config EspeakConfig
	logger zerolog.Logger
}

func NewEspeak(config EspeakConfig) *EspeakSynthesizer {
	if config.Binary == "" {
		config.Binary = "espeak-ng"
	}
	if config.Voice == "" {
		config.Voice = "en"
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}
	return &EspeakSynthesizer{config: config, logger: logging.Or(config.Logger, "tts")}
}

// Synthesize speaks text into outPath, creating its directory if needed.
func (e *EspeakSynthesizer) Synthesize(ctx context.Context, text, outPath string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	// text goes through stdin so a leading "-" is never read as a flag
	if err := run(ctx, e.config.Binary, strings.NewReader(text),
		"-w", outPath,
		"-v", e.config.Voice,
		"--stdin",
	); err != nil {
		return fmt.Errorf("espeak: %w", err)
	}

	e.logger.Debug().Str("out", outPath).Int("chars", len(text)).Msg("speech synthesized")
	return nil
}

func run(ctx context.Context, binary string, stdin *strings.Reader, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
