package queue

import "fmt"

// Config is fixed at Queue construction and never changes for the life of
// the Queue.
type Config struct {
	// Table is the fully-qualified table name interpolated into every
	// statement (e.g. "public.work_requests"). Not validated against the
	// database - schema creation/migration is out of scope (spec §1).
	Table string

	// Dialect selects the SQL fragments from §4.1.
	Dialect Dialect

	// FetchForHandlingLimit (N) bounds rows claimed per Handle call.
	FetchForHandlingLimit int

	// FetchForNotificationLimit (M) bounds rows claimed per Respond call.
	FetchForNotificationLimit int

	// DeleteAfterResponseSent, when true, deletes a row immediately after
	// successful delivery instead of marking it notified.
	DeleteAfterResponseSent bool
}

// Validate checks the configuration is usable and returns a descriptive
// error naming the offending field, never silently defaulting a field the
// caller got wrong.
func (c Config) Validate() error {
	if c.Table == "" {
		return fmt.Errorf("queue: Config.Table must not be empty")
	}
	if _, ok := profileFor(c.Dialect); !ok {
		return fmt.Errorf("queue: Config.Dialect %q is not supported", c.Dialect)
	}
	if c.FetchForHandlingLimit <= 0 {
		return fmt.Errorf("queue: Config.FetchForHandlingLimit must be positive, got %d", c.FetchForHandlingLimit)
	}
	if c.FetchForNotificationLimit <= 0 {
		return fmt.Errorf("queue: Config.FetchForNotificationLimit must be positive, got %d", c.FetchForNotificationLimit)
	}
	return nil
}
