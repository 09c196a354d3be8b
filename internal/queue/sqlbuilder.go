package queue

import "fmt"

// builder composes the nine canonical statements (plus the inspection
// queries) for one table against one dialect profile. It holds no state
// beyond that - every method is a pure function of (table, profile) and,
// for the batch claims, the row limit passed in, so two
// builders constructed with the same table and dialect always produce byte
// identical SQL (testable property 5 in spec §8).
type builder struct {
	table   string
	profile dialectProfile
}

func newBuilder(table string, dialect Dialect) (*builder, error) {
	p, ok := profileFor(dialect)
	if !ok {
		return nil, fmt.Errorf("queue: unsupported dialect %q", dialect)
	}
	return &builder{table: table, profile: p}, nil
}

// withClause appends a non-empty SQL fragment to base, separated by a
// single space. Empty fragments (e.g. Oracle's batch-lock-clause) are
// omitted entirely rather than leaving a trailing space.
func withClause(base, clause string) string {
	if clause == "" {
		return base
	}
	return base + " " + clause
}

func (b *builder) insertNew() string {
	stmt := fmt.Sprintf("INSERT INTO %s (request_id, request) VALUES (?, ?)", b.table)
	return withClause(stmt, b.profile.insertConflictClause)
}

func (b *builder) saveResponse() string {
	return fmt.Sprintf(
		"UPDATE %s SET response_code = ?, response = ? WHERE request_id = ? AND response_code IS NULL",
		b.table,
	)
}

func (b *builder) markNotified() string {
	return fmt.Sprintf(
		"UPDATE %s SET response_notification_timestamp = CURRENT_TIMESTAMP WHERE request_id = ?",
		b.table,
	)
}

func (b *builder) deleteOne() string {
	return fmt.Sprintf("DELETE FROM %s WHERE request_id = ?", b.table)
}

func (b *builder) deleteAll() string {
	return fmt.Sprintf("DELETE FROM %s", b.table)
}

func (b *builder) claimNewBatch(n int) string {
	stmt := fmt.Sprintf(
		"SELECT request_id, request FROM %s WHERE response_code IS NULL FETCH FIRST %d ROWS ONLY",
		b.table, n,
	)
	return withClause(stmt, b.profile.batchLockClause)
}

func (b *builder) claimHandledBatch(m int) string {
	stmt := fmt.Sprintf(
		"SELECT request_id, response_code, response FROM %s "+
			"WHERE response_code IS NOT NULL AND response_notification_timestamp IS NULL "+
			"FETCH FIRST %d ROWS ONLY",
		b.table, m,
	)
	return withClause(stmt, b.profile.batchLockClause)
}

// relockNewByID is used only on dialects where the batch claim does not
// itself lock rows (Oracle). Keep the single-predicate form (response_code
// IS NULL) rather than repeating the full claim predicate - see spec §9.
func (b *builder) relockNewByID() string {
	stmt := fmt.Sprintf(
		"SELECT request_id FROM %s WHERE response_code IS NULL AND request_id = ?",
		b.table,
	)
	return withClause(stmt, b.profile.rowLockClause)
}

func (b *builder) relockHandledByID() string {
	stmt := fmt.Sprintf(
		"SELECT request_id FROM %s WHERE response_code IS NOT NULL "+
			"AND response_notification_timestamp IS NULL AND request_id = ?",
		b.table,
	)
	return withClause(stmt, b.profile.rowLockClause)
}

func (b *builder) selectNotHandled() string {
	return fmt.Sprintf("SELECT request_id FROM %s WHERE response_code IS NULL ORDER BY request_id", b.table)
}

func (b *builder) selectNotNotified() string {
	return fmt.Sprintf(
		"SELECT request_id FROM %s WHERE response_code IS NOT NULL "+
			"AND response_notification_timestamp IS NULL ORDER BY request_id",
		b.table,
	)
}

func (b *builder) selectNotified() string {
	return fmt.Sprintf(
		"SELECT request_id FROM %s WHERE response_notification_timestamp IS NOT NULL ORDER BY request_id",
		b.table,
	)
}
