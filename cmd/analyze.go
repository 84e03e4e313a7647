package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/pipeline"
	"github.com/xhad/medilex/pkg/translate"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Explain a prescription image, typed symptoms or a voice note",
	Long: `Run the full pipeline on one input: OCR or transcription, medicine
detection, an explanation from the knowledge base with diet and rest tips,
and optionally a translation and a spoken WAV file.

Examples:
  medilex analyze --image prescription.jpg
  medilex analyze --text "fever and headache since two days" --translate
  medilex analyze --audio note.wav --speak --json
  medilex analyze --batch scans/ --workers 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetString("image")
		text, _ := cmd.Flags().GetString("text")
		audio, _ := cmd.Flags().GetString("audio")
		doTranslate, _ := cmd.Flags().GetBool("translate")
		speak, _ := cmd.Flags().GetBool("speak")
		asJSON, _ := cmd.Flags().GetBool("json")
		lang, _ := cmd.Flags().GetString("lang")
		batchDir, _ := cmd.Flags().GetString("batch")
		workers, _ := cmd.Flags().GetInt("workers")

		in := pipeline.Input{Translate: doTranslate || cfg.Translate.Enabled, Speak: speak}
		switch {
		case image != "":
			in.Source, in.ImagePath = models.SourceImage, image
		case audio != "":
			in.Source, in.AudioPath = models.SourceAudio, audio
		default:
			in.Source, in.Text = models.SourceText, text
		}
		if lang != "" {
			if _, err := translate.LanguageName(lang); err != nil {
				return err
			}
		}

		var batch []pipeline.Input
		var names []string
		if batchDir != "" {
			var err error
			if batch, names, err = batchInputs(batchDir, in); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.pipeline(lang)
		if err != nil {
			return err
		}

		if batch != nil {
			return runBatch(cmd, p, batch, names, workers, asJSON)
		}

		var spinner *progressbar.ProgressBar
		if !asJSON {
			spinner = getSpinner(" Analyzing...")
		}
		result, err := p.Analyze(ctx, in)
		if spinner != nil {
			_ = spinner.Finish()
		}
		if errors.Is(err, pipeline.ErrNoInput) {
			return errors.New("please provide input: --image, --text or --audio")
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		printAnalysis(result)
		return nil
	},
}

func printAnalysis(a *models.Analysis) {
	switch a.Source {
	case models.SourceImage:
		printSection("OCR OUTPUT")
	case models.SourceAudio:
		printSection("TRANSCRIPT")
	default:
		printSection("INPUT")
	}
	fmt.Println(a.InputText)

	printSection("NER DETECTION")
	if len(a.Entities.Medications) == 0 {
		color.HiBlack("No medications detected")
	}
	for _, m := range a.Entities.Medications {
		color.New(color.FgGreen, color.Bold).Printf("- %s", m.Name)
		fmt.Printf("  %s  %s (%s)  %s\n", m.Dose, m.Freq, m.FreqExpanded, m.Route)
	}
	if len(a.Entities.Symptoms) > 0 {
		fmt.Printf("Symptoms: %v\n", a.Entities.Symptoms)
	}
	if len(a.Entities.Diet) > 0 {
		fmt.Printf("Diet: %v\n", a.Entities.Diet)
	}

	printSection("RAG EXPLANATION (English)")
	fmt.Println(a.FinalAnswer)

	if a.Translation != "" {
		name, _ := translate.LanguageName(a.TranslationLang)
		printSection(fmt.Sprintf("Translation (%s)", name))
		fmt.Println(a.Translation)
	}
	if a.AudioPath != "" {
		color.Green("\n✓ Audio saved to %s", a.AudioPath)
	}
	for _, w := range a.Warnings {
		color.Yellow("\nWarning: %s", w)
	}
	color.HiBlack("\nAnalysis %s", a.ID)
}

func init() {
	analyzeCmd.Flags().String("image", "", "Prescription image (jpg, png, tiff, bmp)")
	analyzeCmd.Flags().String("text", "", "Typed symptoms or prescription text")
	analyzeCmd.Flags().String("audio", "", "Voice note (wav, mp3, m4a, ogg, flac)")
	analyzeCmd.Flags().Bool("translate", false, "Translate the explanation")
	analyzeCmd.Flags().String("lang", "", "Translation target language code (default from config)")
	analyzeCmd.Flags().Bool("speak", false, "Save the explanation as speech")
	analyzeCmd.Flags().Bool("json", false, "Print the analysis as JSON")
	analyzeCmd.Flags().String("batch", "", "Analyze every image, audio and .txt file in a directory")
	analyzeCmd.Flags().Int("workers", 4, "Concurrent analyses for --batch")
	analyzeCmd.MarkFlagsMutuallyExclusive("image", "text", "audio", "batch")
	rootCmd.AddCommand(analyzeCmd)
}
