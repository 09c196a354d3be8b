package main

import (
	"context"
	"fmt"

	"github.com/kestrelq/rowqueue/internal/drivers"
	"github.com/kestrelq/rowqueue/internal/queue"
)

// dialectFromFlag accepts either the queue package's dialect string or the
// shorter aliases operators tend to type (mssql for MS SQL Server).
func dialectFromFlag(s string) (queue.Dialect, error) {
	switch s {
	case "postgres", string(queue.PostgreSQL):
		return queue.PostgreSQL, nil
	case "mysql", string(queue.MySQL):
		return queue.MySQL, nil
	case "oracle", string(queue.Oracle):
		return queue.Oracle, nil
	case "mssql", "sqlserver", string(queue.MSSQLServer):
		return queue.MSSQLServer, nil
	case "db2", string(queue.DB2):
		return queue.DB2, nil
	default:
		return "", fmt.Errorf("rqctl: unrecognized --dialect %q", s)
	}
}

// openQueue resolves --dsn/--dialect/--table into a connected *queue.Queue
// wired to handler and responder. Either may be nil for commands that never
// call Handle/Respond (add, inspect).
func openQueue(ctx context.Context, handler queue.Handler, responder queue.Responder) (*queue.Queue, error) {
	if flagDSN == "" {
		return nil, fmt.Errorf("rqctl: --dsn is required")
	}
	if flagTable == "" {
		return nil, fmt.Errorf("rqctl: --table is required")
	}
	dialect, err := dialectFromFlag(flagDialect)
	if err != nil {
		return nil, err
	}
	db, err := drivers.Open(ctx, dialect, flagDSN)
	if err != nil {
		return nil, err
	}
	cfg := queue.Config{
		Table:                     flagTable,
		Dialect:                   dialect,
		FetchForHandlingLimit:     defaultBatchLimit,
		FetchForNotificationLimit: defaultBatchLimit,
	}
	return queue.New(db, cfg, handler, responder, nil)
}

const defaultBatchLimit = 50

