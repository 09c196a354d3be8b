package queue

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/godror/godror"
	mssql "github.com/microsoft/go-mssqldb"
)

// isDuplicateKeyError reports whether err is a primary-key / unique
// constraint violation raised by the driver underlying dialect d. PostgreSQL
// relies on ON CONFLICT DO NOTHING (a zero-affected-rows result, not an
// error) and so is never consulted here; the other four dialects lack a
// portable "do nothing on conflict" clause (spec §4.1) and instead raise a
// constraint violation at Exec time that Add must translate uniformly into
// a SaveError wrapping ErrDuplicateRequest.
func isDuplicateKeyError(d Dialect, err error) bool {
	if err == nil {
		return false
	}
	switch d {
	case MySQL:
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) {
			return myErr.Number == 1062 // ER_DUP_ENTRY
		}
	case Oracle:
		var oraErr *godror.OraErr
		if errors.As(err, &oraErr) {
			return oraErr.Code() == 1 // ORA-00001: unique constraint violated
		}
	case MSSQLServer:
		var msErr mssql.Error
		if errors.As(err, &msErr) {
			return msErr.Number == 2627 || msErr.Number == 2601 // PK / unique index violation
		}
	case DB2:
		// github.com/ibmdb/go_ibm_db surfaces CLI-layer SQLSTATE/SQLCODE text
		// rather than a typed error; SQL0803N is DB2's duplicate-key SQLCODE.
		return strings.Contains(err.Error(), "SQL0803N")
	}
	return false
}

// PostgreSQL never reaches isDuplicateKeyError for a duplicate row: its
// insert-conflict-clause (ON CONFLICT DO NOTHING) makes the INSERT succeed
// with RowsAffected()==0 instead, which Add checks directly.
