package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var serveInterval time.Duration

// serveCmd loops Handle and Respond on a fixed interval until the process
// receives SIGINT/SIGTERM, mirroring a daemon's sync loop. Like handleCmd
// and respondCmd it uses the echo/stdout callbacks - a real deployment
// embeds package rowqueue directly rather than shelling out to rqctl serve.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Loop Handle and Respond on an interval until interrupted",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 2*time.Second, "delay between Handle/Respond passes")
}

func runServe(cmd *cobra.Command, args []string) error {
	q, err := openQueue(rootCtx, echoHandler, stdoutResponder)
	if err != nil {
		return err
	}

	log := slog.Default()
	ticker := time.NewTicker(serveInterval)
	defer ticker.Stop()

	runPass := func() {
		if err := q.Handle(rootCtx); err != nil {
			log.Error("serve: handle pass failed", "error", err)
		}
		if err := q.Respond(rootCtx); err != nil {
			log.Error("serve: respond pass failed", "error", err)
		}
	}
	runPass()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("serve: shutting down")
			return nil
		case <-ticker.C:
			runPass()
		}
	}
}
