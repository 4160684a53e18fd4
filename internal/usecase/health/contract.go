package health

import "context"

// Checker probes one dependency; a nil error means it can serve requests.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc lets a plain probe such as a store's Ping act as a Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
