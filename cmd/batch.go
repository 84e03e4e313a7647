package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/ocr"
	"github.com/xhad/medilex/pkg/pipeline"
	"github.com/xhad/medilex/pkg/speech"
)

// batchInputs builds one input per supported file in dir, in name order.
// Images go through OCR, audio through whisper and .txt files are read as
// typed text. Other files are skipped.
func batchInputs(dir string, base pipeline.Input) ([]pipeline.Input, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read batch dir: %w", err)
	}

	var inputs []pipeline.Input
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		ext := filepath.Ext(e.Name())

		in := base
		switch {
		case ocr.SupportedFormat(ext):
			in.Source, in.ImagePath = models.SourceImage, path
		case speech.SupportedAudio(ext):
			in.Source, in.AudioPath = models.SourceAudio, path
		case strings.EqualFold(ext, ".txt"):
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, nil, err
			}
			in.Source, in.Text = models.SourceText, string(data)
		default:
			continue
		}
		inputs = append(inputs, in)
		names = append(names, e.Name())
	}

	if len(inputs) == 0 {
		return nil, nil, fmt.Errorf("no images, audio or .txt files in %s", dir)
	}
	return inputs, names, nil
}

type batchItem struct {
	File     string           `json:"file"`
	Analysis *models.Analysis `json:"analysis,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, p *pipeline.Pipeline, inputs []pipeline.Input, names []string, workers int, asJSON bool) error {
	if !asJSON {
		color.Cyan("Analyzing %d files with %d workers...", len(inputs), workers)
	}
	results := p.AnalyzeBatch(cmd.Context(), inputs, workers)

	items := make([]batchItem, len(results))
	failed := 0
	for i, r := range results {
		items[i] = batchItem{File: names[i], Analysis: r.Analysis}
		if r.Err != nil {
			items[i].Error = r.Err.Error()
			failed++
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			return err
		}
	} else {
		for _, it := range items {
			printSection(it.File)
			if it.Error != "" {
				color.Red("Error: %s", it.Error)
				continue
			}
			printAnalysis(it.Analysis)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(items))
	}
	return nil
}
