package queue

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, dialect Dialect, handler Handler, responder Responder) (*Queue, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := Config{
		Table:                     "test.test_task",
		Dialect:                   dialect,
		FetchForHandlingLimit:     2,
		FetchForNotificationLimit: 2,
	}
	q, err := New(db, cfg, handler, responder, nil)
	require.NoError(t, err)
	return q, mock
}

func quote(s string) string { return "^" + regexp.QuoteMeta(s) + "$" }

// echoHandler returns a Response whose data is "response"+id, matching the
// fixture convention used throughout spec §8's scenarios.
var echoHandler = HandlerFunc(func(ctx context.Context, tx *sql.Tx, req Request) (Response, error) {
	return Response{Code: 0, Data: []byte("response" + string(rune('0'+req.ID)))}, nil
})

// TestHandlePostgresClaimsLocksAndSaves exercises S3/S4 for a single-step
// dialect: the batch claim itself locks the rows, so no re-lock step runs.
func TestHandlePostgresClaimsLocksAndSaves(t *testing.T) {
	var seen []int64
	handler := HandlerFunc(func(ctx context.Context, tx *sql.Tx, req Request) (Response, error) {
		seen = append(seen, req.ID)
		return Response{Code: 0, Data: []byte("ok")}, nil
	})
	q, mock := newTestQueue(t, PostgreSQL, handler, nil)
	b, _ := newBuilder("test.test_task", PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectQuery(quote(b.claimNewBatch(2))).WillReturnRows(
		sqlmock.NewRows([]string{"request_id", "request"}).
			AddRow(int64(0), []byte("request0")).
			AddRow(int64(1), []byte("request1")),
	)
	mock.ExpectExec(quote(b.saveResponse())).WithArgs(int32(0), []byte("ok"), int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(quote(b.saveResponse())).WithArgs(int32(0), []byte("ok"), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, q.Handle(context.Background()))
	require.Equal(t, []int64{0, 1}, seen)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestHandleOracleSkipsRowLostToPeer exercises the two-step claim protocol:
// a candidate read by the unlocked batch select is skipped silently when
// the per-row re-lock finds it already gone.
func TestHandleOracleSkipsRowLostToPeer(t *testing.T) {
	var handled []int64
	handler := HandlerFunc(func(ctx context.Context, tx *sql.Tx, req Request) (Response, error) {
		handled = append(handled, req.ID)
		return Response{Code: 0, Data: []byte("ok")}, nil
	})
	q, mock := newTestQueue(t, Oracle, handler, nil)
	b, _ := newBuilder("test.test_task", Oracle)

	mock.ExpectBegin()
	mock.ExpectQuery(quote(b.claimNewBatch(2))).WillReturnRows(
		sqlmock.NewRows([]string{"request_id", "request"}).
			AddRow(int64(0), []byte("request0")).
			AddRow(int64(1), []byte("request1")),
	)
	// Row 0 was claimed by a peer between the batch read and the re-lock.
	mock.ExpectQuery(quote(b.relockNewByID())).WithArgs(int64(0)).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(quote(b.relockNewByID())).WithArgs(int64(1)).WillReturnRows(
		sqlmock.NewRows([]string{"request_id"}).AddRow(int64(1)),
	)
	mock.ExpectExec(quote(b.saveResponse())).WithArgs(int32(0), []byte("ok"), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, q.Handle(context.Background()))
	require.Equal(t, []int64{1}, handled)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestHandleAbortsOnHandlerFailure verifies a HandleError rolls back the
// whole pass instead of committing partial work.
func TestHandleAbortsOnHandlerFailure(t *testing.T) {
	handlerErr := errors.New("boom")
	handler := HandlerFunc(func(ctx context.Context, tx *sql.Tx, req Request) (Response, error) {
		return Response{}, handlerErr
	})
	q, mock := newTestQueue(t, PostgreSQL, handler, nil)
	b, _ := newBuilder("test.test_task", PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectQuery(quote(b.claimNewBatch(2))).WillReturnRows(
		sqlmock.NewRows([]string{"request_id", "request"}).AddRow(int64(0), []byte("request0")),
	)
	mock.ExpectRollback()

	err := q.Handle(context.Background())
	require.Error(t, err)
	var handleErr *HandleError
	require.ErrorAs(t, err, &handleErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRespondMarksNotifiedByDefault exercises S3/S4's default (non-delete)
// delivery path.
func TestRespondMarksNotifiedByDefault(t *testing.T) {
	var delivered []int64
	responder := ResponderFunc(func(ctx context.Context, id int64, resp Response) error {
		delivered = append(delivered, id)
		return nil
	})
	q, mock := newTestQueue(t, PostgreSQL, nil, responder)
	b, _ := newBuilder("test.test_task", PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectQuery(quote(b.claimHandledBatch(2))).WillReturnRows(
		sqlmock.NewRows([]string{"request_id", "response_code", "response"}).
			AddRow(int64(0), int32(0), []byte("response0")),
	)
	mock.ExpectExec(quote(b.markNotified())).WithArgs(int64(0)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, q.Respond(context.Background()))
	require.Equal(t, []int64{0}, delivered)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRespondDeletesWhenConfigured exercises S5's delete-after-delivery mode.
func TestRespondDeletesWhenConfigured(t *testing.T) {
	responder := ResponderFunc(func(ctx context.Context, id int64, resp Response) error { return nil })
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := Config{
		Table:                     "test.test_task",
		Dialect:                   PostgreSQL,
		FetchForHandlingLimit:     2,
		FetchForNotificationLimit: 2,
		DeleteAfterResponseSent:   true,
	}
	q, err := New(db, cfg, nil, responder, nil)
	require.NoError(t, err)
	b, _ := newBuilder("test.test_task", PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectQuery(quote(b.claimHandledBatch(2))).WillReturnRows(
		sqlmock.NewRows([]string{"request_id", "response_code", "response"}).
			AddRow(int64(0), int32(0), []byte("response0")),
	)
	mock.ExpectExec(quote(b.deleteOne())).WithArgs(int64(0)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, q.Respond(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRespondAbortsWhenDeliveryFails ensures a failing delivery callback
// aborts the pass and leaves the row Handled (no mark/delete executed).
func TestRespondAbortsWhenDeliveryFails(t *testing.T) {
	deliverErr := errors.New("sink unavailable")
	responder := ResponderFunc(func(ctx context.Context, id int64, resp Response) error { return deliverErr })
	q, mock := newTestQueue(t, PostgreSQL, nil, responder)
	b, _ := newBuilder("test.test_task", PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectQuery(quote(b.claimHandledBatch(2))).WillReturnRows(
		sqlmock.NewRows([]string{"request_id", "response_code", "response"}).
			AddRow(int64(0), int32(0), []byte("response0")),
	)
	mock.ExpectRollback()

	err := q.Respond(context.Background())
	require.Error(t, err)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestAddRejectsDuplicateUnderFailIfDuplicate exercises S2: a zero-affected
// row from ON CONFLICT DO NOTHING raises SaveError and rolls back the batch.
func TestAddRejectsDuplicateUnderFailIfDuplicate(t *testing.T) {
	q, mock := newTestQueue(t, PostgreSQL, nil, nil)
	b, _ := newBuilder("test.test_task", PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectPrepare(quote(b.insertNew()))
	mock.ExpectExec(quote(b.insertNew())).WithArgs(int64(0), []byte("request0")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := q.Add(context.Background(), []Request{{ID: 0, Data: []byte("request0")}}, true)
	require.Error(t, err)
	require.True(t, IsDuplicate(err))
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestAddSilentlyDropsDuplicateWhenNotRequired exercises Add with
// fail-if-duplicate=false: the batch still commits with the duplicate
// simply skipped.
func TestAddSilentlyDropsDuplicateWhenNotRequired(t *testing.T) {
	q, mock := newTestQueue(t, PostgreSQL, nil, nil)
	b, _ := newBuilder("test.test_task", PostgreSQL)

	reqs := []Request{{ID: 0, Data: []byte("request0")}, {ID: 1, Data: []byte("request1")}}

	mock.ExpectBegin()
	mock.ExpectPrepare(quote(b.insertNew()))
	mock.ExpectExec(quote(b.insertNew())).WithArgs(int64(0), []byte("request0")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(quote(b.insertNew())).WithArgs(int64(1), []byte("request1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, q.Add(context.Background(), reqs, false))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestAddMySQLDuplicateKeyErrorTranslatedUniformly verifies a dialect that
// lacks ON CONFLICT (MySQL) gets the same SaveError/ErrDuplicateRequest
// translation from a driver-level constraint violation.
func TestAddMySQLDuplicateKeyErrorTranslatedUniformly(t *testing.T) {
	q, mock := newTestQueue(t, MySQL, nil, nil)
	b, _ := newBuilder("test.test_task", MySQL)

	mock.ExpectBegin()
	mock.ExpectPrepare(quote(b.insertNew()))
	mock.ExpectExec(quote(b.insertNew())).WithArgs(int64(0), []byte("request0")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '0' for key 'PRIMARY'"})
	mock.ExpectRollback()

	err := q.Add(context.Background(), []Request{{ID: 0, Data: []byte("request0")}}, true)
	require.Error(t, err)
	require.True(t, IsDuplicate(err))
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAllReturnsAffectedCount(t *testing.T) {
	q, mock := newTestQueue(t, PostgreSQL, nil, nil)
	b, _ := newBuilder("test.test_task", PostgreSQL)

	mock.ExpectExec(quote(b.deleteAll())).WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := q.DeleteAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionQueries(t *testing.T) {
	q, mock := newTestQueue(t, PostgreSQL, nil, nil)
	b, _ := newBuilder("test.test_task", PostgreSQL)

	mock.ExpectQuery(quote(b.selectNotHandled())).WillReturnRows(
		sqlmock.NewRows([]string{"request_id"}).AddRow(int64(0)).AddRow(int64(1)),
	)
	ids, err := q.NotHandledRequestIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
