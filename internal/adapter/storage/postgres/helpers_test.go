package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

// testNow is truncated to microseconds to match PostgreSQL timestamp precision.
func testNow() time.Time {
	return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
}

// anyArgs matches n arguments of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}
