// Package ocr reads prescription text from images with the tesseract CLI.
package ocr

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
	"github.com/xhad/medilex/pkg/logging"
)

var (
	ErrImageNotFound     = errors.New("image file not found")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrEmptyImage        = errors.New("image file is empty")
)

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// SupportedFormat reports whether ext (with leading dot) can be read.
func SupportedFormat(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

type Config struct {
	Binary  string // default "tesseract"
	Lang    string // default "eng"
	Timeout time.Duration
	Logger  *zerolog.Logger
}

// TesseractExtractor runs `tesseract <image> stdout -l <lang>`.
type TesseractExtractor struct {
	config Config
	logger zerolog.Logger
}

func NewTesseract(config Config) *TesseractExtractor {
	if config.Binary == "" {
		config.Binary = "tesseract"
	}
	if config.Lang == "" {
		config.Lang = "eng"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &TesseractExtractor{
		config: config,
		logger: logging.Or(config.Logger, "ocr"),
	}
}

// Available reports whether the tesseract binary can be found.
func (t *TesseractExtractor) Available() bool {
	_, err := exec.LookPath(t.config.Binary)
	return err == nil
}

func (t *TesseractExtractor) ExtractText(ctx context.Context, imagePath string) (string, error) {
	if !SupportedFormat(filepath.Ext(imagePath)) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(imagePath))
	}
	info, err := os.Stat(imagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrImageNotFound, imagePath)
		}
		return "", err
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyImage, imagePath)
	}

	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	start := time.Now()
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.config.Binary, imagePath, "stdout", "-l", t.config.Lang)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("tesseract: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("tesseract: %w", err)
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, msg)
	}

	text := cleanOutput(stdout.String())
	t.logger.Debug().
		Str("image", imagePath).
		Int("chars", len(text)).
		Dur("took", time.Since(start)).
		Msg("ocr complete")
	return text, nil
}

func cleanOutput(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\f", "")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
