// Package drivers opens a *sql.DB for each dialect the queue engine
// supports, blank-importing the driver package that registers itself with
// database/sql and retrying the initial ping against transient connection
// errors (a server still starting, a brief network blip) - a concern kept
// deliberately separate from the engine's own no-retry transactional passes.
package drivers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/godror/godror"
	_ "github.com/ibmdb/go_ibm_db"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/kestrelq/rowqueue/internal/queue"
)

// driverName maps a queue.Dialect to the database/sql driver name
// registered by that dialect's blank import above.
var driverName = map[queue.Dialect]string{
	queue.PostgreSQL:  "postgres",
	queue.MySQL:       "mysql",
	queue.Oracle:      "godror",
	queue.MSSQLServer: "sqlserver",
	queue.DB2:         "go_ibm_db",
}

// pingRetryMaxElapsed bounds how long Open waits for a newly-starting
// database to become reachable before giving up.
const pingRetryMaxElapsed = 30 * time.Second

// Open opens a connection pool for dialect using dsn and blocks until the
// first PingContext succeeds or pingRetryMaxElapsed elapses, retrying only
// transient connection errors (connection refused, reset, broken pipe) -
// never query-level errors, which are never seen this early.
func Open(ctx context.Context, dialect queue.Dialect, dsn string) (*sql.DB, error) {
	name, ok := driverName[dialect]
	if !ok {
		return nil, fmt.Errorf("drivers: unsupported dialect %q", dialect)
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("drivers: open %s: %w", dialect, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = pingRetryMaxElapsed
	pingErr := backoff.Retry(func() error {
		err := db.PingContext(ctx)
		if err != nil && isRetryableConnectError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("drivers: %s not reachable: %w", dialect, pingErr)
	}
	return db, nil
}

// isRetryableConnectError reports whether err looks like a transient
// connection-establishment failure worth retrying rather than a
// configuration mistake (bad DSN, auth failure) worth failing fast on.
func isRetryableConnectError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "connection refused"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "driver: bad connection"),
		strings.Contains(s, "invalid connection"),
		strings.Contains(s, "i/o timeout"),
		strings.Contains(s, "no route to host"):
		return true
	}
	return false
}
