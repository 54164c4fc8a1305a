// Package ledger defines the transactional boundary of the engine.
// Every money movement (debit, credit, transaction record, payment and
// loan status updates) happens inside a single InTx call: either all
// of it commits or none of it is observable.
package ledger

import "context"

// TxRunner runs fn inside one atomic commit. The context passed to fn
// carries the open transaction; repository implementations route their
// statements through it. Nested calls join the ambient transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
