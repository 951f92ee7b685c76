// Package simple contains the pass-through fetch policy used when no rate
// limit is configured.
package simple

import "context"

// Policy never delays a request.
type Policy struct{}

// New creates a new Policy.
func New() *Policy {
	return &Policy{}
}

// Wait only reports cancellation of ctx.
func (Policy) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}
