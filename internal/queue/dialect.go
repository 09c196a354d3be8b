package queue

// Dialect names a supported database product. The dialect is fixed at
// engine construction (Config.Dialect) and never changes for the lifetime
// of a Queue.
type Dialect string

const (
	PostgreSQL   Dialect = "postgres"
	Oracle       Dialect = "oracle"
	MySQL        Dialect = "mysql"
	MSSQLServer  Dialect = "mssql"
	DB2          Dialect = "db2"
)

// dialectProfile carries the three SQL fragments that differ between
// database products. It is pure data, never dispatched on via interfaces -
// a tagged variant table, not a polymorphic hierarchy.
type dialectProfile struct {
	// batchLockClause is appended to claim-new-batch / claim-handled-batch.
	// Combines row locking with skip-past-locked-rows in a single statement
	// on dialects that support it; empty on Oracle (see rowLockClause).
	batchLockClause string

	// rowLockClause is appended to the single-row re-lock statements used
	// only on the Oracle two-step claim protocol (see engine.go). Empty on
	// every other dialect, which locks the whole batch in one shot.
	rowLockClause string

	// insertConflictClause makes insert-new idempotent in a single
	// statement on dialects that support it. Empty elsewhere; those
	// dialects rely on a zero-affected-rows post-check (see Add).
	insertConflictClause string
}

// profiles is an immutable map literal populated once at package init and
// never mutated afterward.
var profiles = map[Dialect]dialectProfile{
	PostgreSQL: {
		batchLockClause:      "FOR UPDATE SKIP LOCKED",
		rowLockClause:        "",
		insertConflictClause: "ON CONFLICT DO NOTHING",
	},
	Oracle: {
		batchLockClause:      "",
		rowLockClause:        "FOR UPDATE SKIP LOCKED",
		insertConflictClause: "",
	},
	MySQL: {
		batchLockClause:      "FOR UPDATE SKIP LOCKED",
		rowLockClause:        "",
		insertConflictClause: "",
	},
	MSSQLServer: {
		batchLockClause:      "FOR UPDATE READPAST",
		rowLockClause:        "",
		insertConflictClause: "",
	},
	DB2: {
		batchLockClause:      "FOR UPDATE SKIP LOCKED DATA",
		rowLockClause:        "",
		insertConflictClause: "",
	},
}

// profileFor returns the dialect's profile, with ok false for an unknown
// dialect. Config.Validate and newBuilder turn ok == false into an error.
func profileFor(d Dialect) (dialectProfile, bool) {
	p, ok := profiles[d]
	return p, ok
}

// usesOracleTwoStepClaim reports whether the given dialect's batch claim
// does not itself acquire row locks, requiring the per-row re-lock protocol
// described in spec §4.3. Only Oracle's batch-lock-clause is empty by
// design; every other dialect locks the whole batch in its claim SELECT.
func usesOracleTwoStepClaim(d Dialect) bool {
	return d == Oracle
}
