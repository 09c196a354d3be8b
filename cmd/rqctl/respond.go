package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelq/rowqueue/internal/queue"
)

// stdoutResponder is rqctl's built-in Responder: it prints each delivered
// response to stdout rather than delivering it anywhere - the same
// smoke-test stand-in role echoHandler plays for Handle.
var stdoutResponder = queue.ResponderFunc(func(ctx context.Context, requestID int64, resp queue.Response) error {
	fmt.Printf("request_id=%d code=%d data=%q\n", requestID, resp.Code, resp.Data)
	return nil
})

var respondCmd = &cobra.Command{
	Use:   "respond",
	Short: "Run one Respond pass, printing each delivered response to stdout",
	RunE:  runRespond,
}

func runRespond(cmd *cobra.Command, args []string) error {
	q, err := openQueue(rootCtx, nil, stdoutResponder)
	if err != nil {
		return err
	}
	if err := q.Respond(rootCtx); err != nil {
		return fmt.Errorf("rqctl: respond: %w", err)
	}
	fmt.Println("respond pass complete")
	return nil
}
