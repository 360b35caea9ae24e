package main

import (
	"github.com/spf13/cobra"

	"github.com/xhad/docbot/internal/types"
	"github.com/xhad/docbot/pkg/chatbot"
	"github.com/xhad/docbot/server"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chatbot as a single web page",
	Long: `Serve the chatbot over HTTP. Every browser tab gets its own session
and index; messages travel over a websocket at /ws.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (default from config or $PORT, else 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	deps, err := chatbot.NewDeps(cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	srv, err := server.NewWSServer(server.Config{
		Port:          cfg.Server.Port,
		DefaultFolder: cfg.Dropbox.Folder,
	}, func(reporter types.Reporter) (server.Handler, error) {
		session, err := deps.NewSession(reporter)
		if err != nil {
			return nil, err
		}
		return session, nil
	})
	if err != nil {
		return err
	}

	return srv.ListenAndServe()
}
