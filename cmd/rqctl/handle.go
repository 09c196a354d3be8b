package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelq/rowqueue/internal/queue"
)

// echoHandler is rqctl's built-in Handler: it has no knowledge of the
// request payload's meaning, so it can only echo it back with a success
// code. This is enough for operator smoke tests ("does a Handle pass
// actually claim and save rows against this database") but a real
// embedding host must supply its own Handler - rqctl never computes an
// application response.
var echoHandler = queue.HandlerFunc(func(ctx context.Context, tx *sql.Tx, req queue.Request) (queue.Response, error) {
	return queue.Response{Code: 0, Data: req.Data}, nil
})

var handleCmd = &cobra.Command{
	Use:   "handle",
	Short: "Run one Handle pass, echoing each claimed request as its response",
	Long:  `Runs a single Handle pass against the table named by --table. rqctl has no application logic of its own, so the built-in handler simply echoes each request's payload back as the response - useful for verifying claim/lock/save behavior against a live database, not for production response computation.`,
	RunE:  runHandle,
}

func runHandle(cmd *cobra.Command, args []string) error {
	q, err := openQueue(rootCtx, echoHandler, nil)
	if err != nil {
		return err
	}
	if err := q.Handle(rootCtx); err != nil {
		return fmt.Errorf("rqctl: handle: %w", err)
	}
	fmt.Println("handle pass complete")
	return nil
}
