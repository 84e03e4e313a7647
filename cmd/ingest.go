package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xhad/medilex/pkg/rag"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the knowledge base from text files or a website",
	Long: `Chunk, embed and store medical reference text.

Examples:
  medilex ingest --dir corpus
  medilex ingest --url https://medlineplus.gov/fever.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		url, _ := cmd.Flags().GetString("url")
		if dir == "" && url == "" {
			dir = cfg.RAG.CorpusDir
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var bar *progressbar.ProgressBar
		startTime := time.Now()
		in := a.ingestor(func(p rag.IngestProgress) {
			if bar == nil {
				bar = getProgressBar(p.DocumentsTotal, " Embedding and storing")
			}
			_ = bar.Set(p.DocumentsDone)
			rate := float64(p.ChunksStored) / time.Since(startTime).Seconds()
			bar.Describe(color.BlueString(" Embedding and storing (%.1f chunks/sec)", rate))
		})

		var report rag.IngestReport
		if url != "" {
			color.Blue("\nScraping %s", url)
			spinner := getSpinner(" Scraping pages...")
			report, err = in.IngestURL(ctx, url)
			_ = spinner.Finish()
		} else {
			color.Blue("\nLoading corpus from %s", dir)
			report, err = in.IngestDir(ctx, dir)
		}
		if bar != nil {
			_ = bar.Finish()
		}
		if errors.Is(err, rag.ErrNoDocuments) {
			color.Yellow("\n%v", err)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Println()
		color.Green("✓ Ingested %d text chunks from %d documents", report.Chunks, report.Documents)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("dir", "", "Directory of .txt files (default from config)")
	ingestCmd.Flags().String("url", "", "Website to crawl")
	ingestCmd.MarkFlagsMutuallyExclusive("dir", "url")
	rootCmd.AddCommand(ingestCmd)
}
