package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/medilex/pkg/config"
	"github.com/xhad/medilex/pkg/logging"
)

var (
	configPath string
	logLevel   string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "medilex",
	Short: "Offline prescription and symptom explainer",
	Long: `MediLex reads a prescription image, typed symptoms or a voice note,
finds the medicines in it and explains them in simple language using a
local medical knowledge base.

Examples:
  medilex ingest --dir corpus
  medilex analyze --image prescription.jpg --translate
  medilex query "what is paracetamol used for?"
  medilex serve --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		logging.Configure(logging.Config{Level: loaded.Log.Level, Format: loaded.Log.Format})
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

func printSection(title string) {
	fmt.Println()
	color.New(color.FgYellow, color.Bold).Printf("=== %s ===\n", title)
}
