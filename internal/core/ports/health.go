package ports

import "context"

// HealthChecker is one entry of the /health report, keyed by Name.
// A non-nil Ping error marks the service degraded.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
