package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Queue is the orchestrator exposing Add, Handle, Respond, the inspection
// queries, and DeleteAll. It owns transaction boundaries and invokes the
// injected Handler/Responder. A Queue holds exactly one connection (from
// db's pool) for the duration of each public call and releases it on every
// exit path, including panics propagating out of the injected callbacks.
type Queue struct {
	db        *sql.DB
	cfg       Config
	builder   *builder
	handler   Handler
	responder Responder
	logger    *slog.Logger
}

// New constructs a Queue. handler is required for Handle, responder is
// required for Respond; a Queue used only for Add/inspection/DeleteAll may
// pass nil for either.
func New(db *sql.DB, cfg Config, handler Handler, responder Responder, logger *slog.Logger) (*Queue, error) {
	if db == nil {
		return nil, fmt.Errorf("queue: db must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, err := newBuilder(cfg.Table, cfg.Dialect)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{db: db, cfg: cfg, builder: b, handler: handler, responder: responder, logger: logger}, nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error (including a panic, which is re-raised after rollback).
// This is the engine's try-with-resource equivalent: scoped acquisition
// with guaranteed release on every exit path.
func (q *Queue) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Add inserts a batch of new requests in a single transaction. When
// failIfDuplicate is true, any request_id already present aborts the whole
// batch with a SaveError wrapping ErrDuplicateRequest and referencing the
// offending Request; no partial success is offered. When false, duplicates
// are silently dropped and the rest of the batch still commits.
func (q *Queue) Add(ctx context.Context, reqs []Request, failIfDuplicate bool) error {
	q.logger.Debug("queue.add: start", "count", len(reqs), "fail_if_duplicate", failIfDuplicate)
	ctx, span := queueTracer.Start(ctx, "queue.add", trace.WithAttributes(q.spanAttrs()...))

	if len(reqs) == 0 {
		q.logger.Info("queue.add: success", "inserted", 0)
		endSpan(span, nil)
		return nil
	}

	stmt := q.builder.insertNew()
	var inserted, duplicates int64
	err := q.withTx(ctx, func(tx *sql.Tx) error {
		prepared, err := tx.PrepareContext(ctx, stmt)
		if err != nil {
			return err
		}
		defer func() { _ = prepared.Close() }()

		for i := range reqs {
			req := reqs[i]
			result, err := prepared.ExecContext(ctx, req.ID, req.Data)
			if err != nil {
				if isDuplicateKeyError(q.cfg.Dialect, err) {
					duplicates++
					if failIfDuplicate {
						return newSaveError("add", &req, fmt.Errorf("%w: request_id=%d", ErrDuplicateRequest, req.ID))
					}
					continue
				}
				return newSaveError("add", &req, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return newSaveError("add", &req, err)
			}
			if affected == 0 {
				// PostgreSQL's ON CONFLICT DO NOTHING path: no error, no rows.
				duplicates++
				if failIfDuplicate {
					return newSaveError("add", &req, fmt.Errorf("%w: request_id=%d", ErrDuplicateRequest, req.ID))
				}
				continue
			}
			inserted++
		}
		return nil
	})

	attrs := q.spanAttrs()
	recordOutcome(ctx, queueMetrics.enqueued, attrs, "duplicate", duplicates)

	if err != nil {
		q.logger.Error("queue.add: failure", "error", err)
		endSpan(span, err)
		return err
	}
	recordOutcome(ctx, queueMetrics.enqueued, attrs, "inserted", inserted)
	q.logger.Info("queue.add: success", "inserted", inserted, "duplicates", duplicates)
	endSpan(span, nil)
	return nil
}

// Handle claims up to Config.FetchForHandlingLimit rows in state New, runs
// Handler for each, and persists the responses - all inside one
// transaction. See spec §4.3 for the per-dialect claim protocol.
func (q *Queue) Handle(ctx context.Context) error {
	if q.handler == nil {
		err := fmt.Errorf("queue: Handle called with no Handler configured")
		q.logger.Error("queue.handle: failure", "error", err)
		return err
	}
	q.logger.Debug("queue.handle: start", "limit", q.cfg.FetchForHandlingLimit)
	ctx, span := queueTracer.Start(ctx, "queue.handle", trace.WithAttributes(q.spanAttrs()...))

	var handled int64
	err := q.withTx(ctx, func(tx *sql.Tx) error {
		candidates, err := q.claimNewBatch(ctx, tx)
		if err != nil {
			return newSaveError("claim new batch", nil, err)
		}

		for _, req := range candidates {
			if usesOracleTwoStepClaim(q.cfg.Dialect) {
				locked, err := q.relockNew(ctx, tx, req.ID)
				if err != nil {
					return newSaveError("relock new", &req, err)
				}
				if !locked {
					// Another worker claimed the row between the unlocked
					// batch read and this re-lock attempt: skip silently.
					continue
				}
			}

			resp, err := q.handler.ComputeResponse(ctx, tx, req)
			if err != nil {
				return newHandleError("compute response", &req, err)
			}

			if _, err := tx.ExecContext(ctx, q.builder.saveResponse(), resp.Code, resp.Data, req.ID); err != nil {
				return newSaveError("save response", &req, err)
			}
			handled++
		}
		return nil
	})

	queueMetrics.claimedBatch.Record(ctx, handled, metric.WithAttributes(q.spanAttrs()...))

	if err != nil {
		q.logger.Error("queue.handle: failure", "error", err)
		endSpan(span, err)
		return err
	}
	recordOutcome(ctx, queueMetrics.savedResponses, q.spanAttrs(), "saved", handled)
	q.logger.Info("queue.handle: success", "handled", handled)
	endSpan(span, nil)
	return nil
}

func (q *Queue) claimNewBatch(ctx context.Context, tx *sql.Tx) ([]Request, error) {
	rows, err := tx.QueryContext(ctx, q.builder.claimNewBatch(q.cfg.FetchForHandlingLimit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.Data); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// relockNew performs Oracle's mandatory per-row re-lock for a candidate
// read by the unlocked batch select. Returns false (no error) when the row
// was claimed by a peer worker between the batch read and this call.
func (q *Queue) relockNew(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var lockedID int64
	err := tx.QueryRowContext(ctx, q.builder.relockNewByID(), id).Scan(&lockedID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Respond claims up to Config.FetchForNotificationLimit rows in state
// Handled, invokes Responder for each, then marks the row Notified or
// deletes it (per Config.DeleteAfterResponseSent) - all inside one
// transaction. Delivery is at-least-once: a crash after a successful
// DeliverResponse but before commit leaves the row Handled, reclaimable on
// the next Respond call.
func (q *Queue) Respond(ctx context.Context) error {
	if q.responder == nil {
		err := fmt.Errorf("queue: Respond called with no Responder configured")
		q.logger.Error("queue.respond: failure", "error", err)
		return err
	}
	q.logger.Debug("queue.respond: start", "limit", q.cfg.FetchForNotificationLimit)
	ctx, span := queueTracer.Start(ctx, "queue.respond", trace.WithAttributes(q.spanAttrs()...))

	var delivered int64
	err := q.withTx(ctx, func(tx *sql.Tx) error {
		candidates, err := q.claimHandledBatch(ctx, tx)
		if err != nil {
			return newResponseError("claim handled batch", nil, err)
		}

		for _, c := range candidates {
			if usesOracleTwoStepClaim(q.cfg.Dialect) {
				locked, err := q.relockHandled(ctx, tx, c.req.ID)
				if err != nil {
					return newResponseError("relock handled", &c.req, err)
				}
				if !locked {
					continue
				}
			}

			if err := q.responder.DeliverResponse(ctx, c.req.ID, c.resp); err != nil {
				return newResponseError("deliver response", &c.req, err)
			}

			if q.cfg.DeleteAfterResponseSent {
				if _, err := tx.ExecContext(ctx, q.builder.deleteOne(), c.req.ID); err != nil {
					return newResponseError("delete after response", &c.req, err)
				}
			} else {
				if _, err := tx.ExecContext(ctx, q.builder.markNotified(), c.req.ID); err != nil {
					return newResponseError("mark notified", &c.req, err)
				}
			}
			delivered++
		}
		return nil
	})

	queueMetrics.claimedBatch.Record(ctx, delivered, metric.WithAttributes(q.spanAttrs()...))
	recordOutcome(ctx, queueMetrics.delivered, q.spanAttrs(), "delivered", delivered)

	if err != nil {
		q.logger.Error("queue.respond: failure", "error", err)
		endSpan(span, err)
		return err
	}
	q.logger.Info("queue.respond: success", "delivered", delivered)
	endSpan(span, nil)
	return nil
}

type handledCandidate struct {
	req  Request
	resp Response
}

func (q *Queue) claimHandledBatch(ctx context.Context, tx *sql.Tx) ([]handledCandidate, error) {
	rows, err := tx.QueryContext(ctx, q.builder.claimHandledBatch(q.cfg.FetchForNotificationLimit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []handledCandidate
	for rows.Next() {
		var c handledCandidate
		if err := rows.Scan(&c.req.ID, &c.resp.Code, &c.resp.Data); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queue) relockHandled(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var lockedID int64
	err := tx.QueryRowContext(ctx, q.builder.relockHandledByID(), id).Scan(&lockedID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteAll removes every row in the table and returns the number deleted.
// Intended for tests, operator maintenance, and admin tooling - not a hot
// path operation.
func (q *Queue) DeleteAll(ctx context.Context) (int64, error) {
	q.logger.Debug("queue.delete_all: start")
	result, err := q.db.ExecContext(ctx, q.builder.deleteAll())
	if err != nil {
		q.logger.Error("queue.delete_all: failure", "error", err)
		return 0, newSaveError("delete all", nil, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		q.logger.Error("queue.delete_all: failure", "error", err)
		return 0, newSaveError("delete all", nil, err)
	}
	q.logger.Info("queue.delete_all: success", "deleted", n)
	return n, nil
}

// NotHandledRequestIDs returns the IDs of every row still in state New.
func (q *Queue) NotHandledRequestIDs(ctx context.Context) ([]int64, error) {
	return q.selectIDs(ctx, q.builder.selectNotHandled())
}

// NotNotifiedRequestIDs returns the IDs of every row in state Handled (i.e.
// response_code is set but not yet notified/deleted).
func (q *Queue) NotNotifiedRequestIDs(ctx context.Context) ([]int64, error) {
	return q.selectIDs(ctx, q.builder.selectNotNotified())
}

// NotifiedRequestIDs returns the IDs of every row in state Notified.
func (q *Queue) NotifiedRequestIDs(ctx context.Context) ([]int64, error) {
	return q.selectIDs(ctx, q.builder.selectNotified())
}

func (q *Queue) selectIDs(ctx context.Context, query string) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, newSaveError("inspect", nil, err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, newSaveError("inspect", nil, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
