package drivers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kestrelq/rowqueue/internal/queue"
)

func TestIsRetryableConnectError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"driver bad connection", errors.New("driver: bad connection"), true},
		{"i/o timeout", errors.New("read tcp: i/o timeout"), true},
		{"no route to host", errors.New("dial tcp: no route to host"), true},
		{"auth failure is not retryable", errors.New("password authentication failed for user \"rq\""), false},
		{"unknown host is not retryable", errors.New("no such host"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryableConnectError(tt.err))
		})
	}
}

func TestOpenRejectsUnsupportedDialect(t *testing.T) {
	_, err := Open(nil, queue.Dialect("sybase"), "dsn")
	assert.Error(t, err)
}
