package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/medilex/pkg/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past analyses",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		h, err := openHistory()
		if err != nil {
			return err
		}
		defer h.Close()

		items, err := h.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			color.HiBlack("No analyses yet")
			return nil
		}
		for _, a := range items {
			input := strings.Join(strings.Fields(a.InputText), " ")
			if r := []rune(input); len(r) > 60 {
				input = string(r[:57]) + "..."
			}
			fmt.Printf("%s  %s  %-5s  %d meds  %s\n",
				color.CyanString(a.ID),
				a.CreatedAt.Local().Format("2006-01-02 15:04"),
				a.Source,
				len(a.Entities.Medications),
				input)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		h, err := openHistory()
		if err != nil {
			return err
		}
		defer h.Close()

		a, err := h.Get(cmd.Context(), args[0])
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no analysis with id %s", args[0])
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(a)
		}
		printAnalysis(a)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openHistory()
		if err != nil {
			return err
		}
		defer h.Close()

		err = h.Delete(cmd.Context(), args[0])
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no analysis with id %s", args[0])
		}
		if err != nil {
			return err
		}
		color.Green("✓ Deleted %s", args[0])
		return nil
	},
}

func openHistory() (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, errors.New("history is disabled in config")
	}
	return history.Open(cfg.History.Path)
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "Number of analyses to show")
	historyShowCmd.Flags().Bool("json", false, "Print the analysis as JSON")
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}
