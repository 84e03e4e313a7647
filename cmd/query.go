package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask the knowledge base a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		spinner := getSpinner(" Searching knowledge base...")
		ans, err := a.answerer.AnswerTopK(ctx, strings.Join(args, " "), topK)
		_ = spinner.Finish()
		if err != nil {
			return err
		}

		fmt.Println(ans.Text)
		if ans.Warning != "" {
			color.Yellow("Warning: %s", ans.Warning)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().Int("top-k", 0, "Number of passages to retrieve (default from config)")
	rootCmd.AddCommand(queryCmd)
}
