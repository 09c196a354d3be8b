// Package rowqueue provides a minimal public API for embedding a durable,
// multi-consumer, database-backed work queue into a host application.
//
// The state of record lives entirely in a single relational table; at
// most one worker process ever processes a given request concurrently,
// enforced by the database's row-level locking rather than by any
// application-level coordination. See internal/queue for the engine and
// internal/drivers for per-dialect connection helpers.
package rowqueue

import (
	"github.com/kestrelq/rowqueue/internal/queue"
)

// Core types for working with the queue.
type (
	Request       = queue.Request
	Response      = queue.Response
	Config        = queue.Config
	Dialect       = queue.Dialect
	Handler       = queue.Handler
	HandlerFunc   = queue.HandlerFunc
	Responder     = queue.Responder
	ResponderFunc = queue.ResponderFunc
	Queue         = queue.Queue
)

// Supported dialects.
const (
	PostgreSQL  = queue.PostgreSQL
	Oracle      = queue.Oracle
	MySQL       = queue.MySQL
	MSSQLServer = queue.MSSQLServer
	DB2         = queue.DB2
)

// ErrDuplicateRequest is wrapped by the SaveError raised from Add when
// fail-if-duplicate is true and a request_id already exists.
var ErrDuplicateRequest = queue.ErrDuplicateRequest

// IsDuplicate reports whether err is (or wraps) a duplicate-enqueue error
// raised by Add.
func IsDuplicate(err error) bool { return queue.IsDuplicate(err) }

// New constructs a Queue against db using cfg. Most embedders should use
// this directly; internal/drivers provides Open helpers that build a *sql.DB
// for each supported dialect.
var New = queue.New
