package main

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/llm"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the medical knowledge base",
	Long: `Ask follow-up questions interactively. Pasting a URL crawls and
ingests it before answering. Type 'exit' to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noStream, _ := cmd.Flags().GetBool("no-stream")
		streaming := cfg.UI.Streaming && !noStream

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		chatEngine := a.chatEngine()
		ingestor := a.ingestor(nil)

		color.Cyan("\nChat with MediLex (type 'exit' to quit)")

		scanner := bufio.NewScanner(os.Stdin)
		userPrompt := color.New(color.FgGreen).PrintfFunc()
		assistantPrompt := color.New(color.FgCyan).PrintfFunc()

		for ctx.Err() == nil {
			userPrompt("\nYou: ")
			if !scanner.Scan() {
				break
			}

			query := strings.TrimSpace(scanner.Text())
			if strings.EqualFold(query, "exit") {
				break
			}
			if query == "" {
				continue
			}

			if url := urlRegex.FindString(query); url != "" {
				color.Blue("\nDetected URL: %s", url)
				spinner := getSpinner(" Scraping and ingesting...")
				report, err := ingestor.IngestURL(ctx, url)
				_ = spinner.Finish()
				if err != nil {
					color.Red("Failed to ingest URL: %v\n", err)
					continue
				}
				color.Green("✓ Ingested %d text chunks from %d pages\n", report.Chunks, report.Documents)

				query = strings.TrimSpace(strings.Replace(query, url, "", 1))
				if query == "" {
					continue
				}
			}

			if chatEngine == nil {
				spinner := getSpinner(" Searching knowledge base...")
				ans, err := a.answerer.Answer(ctx, query)
				_ = spinner.Finish()
				if err != nil {
					color.Red("Error: %v\n", err)
					continue
				}
				assistantPrompt("\nAssistant: ")
				fmt.Println(ans.Text)
				continue
			}

			querySpinner := getSpinner(" Searching knowledge base...")
			results, err := a.retriever.Retrieve(ctx, query, 0)
			_ = querySpinner.Finish()
			if err != nil {
				color.Red("Error querying documents: %v\n", err)
				continue
			}
			docs := make([]models.Document, len(results))
			for i, r := range results {
				docs[i] = r.Document
			}

			if streaming {
				fmt.Print("\n")
				assistantPrompt("Assistant: ")
				chunks, errs := chatEngine.ChatStream(ctx, query, docs)
				for chunk := range chunks {
					fmt.Print(chunk)
				}
				if err := <-errs; err != nil {
					color.Red("\nError: %v", err)
				}
				fmt.Print("\n")
			} else {
				responseSpinner := getSpinner(" Generating response...")
				response, err := chatEngine.Chat(ctx, query, docs)
				_ = responseSpinner.Finish()
				if err != nil {
					color.Red("Error: %v\n", err)
					continue
				}
				assistantPrompt("\nAssistant: %s\n", response)
			}
			color.HiBlack("%s", llm.FormatSources(docs))
		}
		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().Bool("no-stream", false, "Wait for the full reply instead of streaming")
	rootCmd.AddCommand(chatCmd)
}
