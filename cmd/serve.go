package main

import (
	"github.com/spf13/cobra"
	"github.com/xhad/medilex/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and websocket chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.pipeline("")
		if err != nil {
			return err
		}

		deps := server.Deps{
			Analyzer:  p,
			Answerer:  a.answerer,
			Retriever: a.retriever,
			Ingester:  a.ingestor(nil),
		}
		if a.history != nil {
			deps.History = a.history
		}
		if ce := a.chatEngine(); ce != nil {
			deps.Chat = ce
		}

		srv, err := server.New(server.Config{
			Addr:           cfg.Server.Addr,
			RequestsPerMin: cfg.Server.RequestsPerMin,
			MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
			Streaming:      cfg.UI.Streaming,
		}, deps)
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
