package decision

import "context"

// Provider produces a Decision from a round Snapshot. Implementations are
// expected to return an already-normalized Decision; the scheduler calls
// Validate on the result regardless, to enforce the contract even against a
// misbehaving implementation.
type Provider interface {
	Name() string
	Run(ctx context.Context, snapshot Snapshot) (Decision, error)
}
