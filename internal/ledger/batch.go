package ledger

import (
	"errors"
	"fmt"
)

// MaxCalls is the ledger's hard per-transaction operation limit.
const MaxCalls = 1024

// BudgetExceededError signals that a batch is full. It is an expected
// control signal, not an application error: the caller finalizes the
// batch and opens a new one.
type BudgetExceededError struct {
	Limit int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("transaction batch is full (limit %d calls)", e.Limit)
}

// Batch accumulates calls for one transaction under the operation
// budget. A batch is owned by one in-progress transaction and
// discarded once finalized, never reset.
type Batch struct {
	site  *ObjectRef
	calls []Call
	limit int
}

// NewBatch opens a batch seeded with the shared site object input.
// site is nil only for the first batch of a fresh publish, whose
// create_site call produces the object. A non-positive limit uses
// MaxCalls.
func NewBatch(site *ObjectRef, limit int) *Batch {
	if limit <= 0 {
		limit = MaxCalls
	}
	return &Batch{site: site, limit: limit}
}

// AddCall appends one call, or returns BudgetExceededError without
// mutating the batch.
func (b *Batch) AddCall(call Call) error {
	if len(b.calls)+1 > b.limit {
		return &BudgetExceededError{Limit: b.limit}
	}
	b.calls = append(b.calls, call)
	return nil
}

// AddTransfer appends a transfer of the site object, under the same
// budget as any other call.
func (b *Batch) AddTransfer(recipient string) error {
	return b.AddCall(TransferCall(recipient))
}

// FillFrom adds calls from the cursor until it is exhausted or the
// budget is hit. Only BudgetExceededError is swallowed: it reports
// full=true, the overflowing call stays at the cursor position for the
// next batch, and everything already added stays added. Any other
// error propagates.
func (b *Batch) FillFrom(cursor *CallCursor) (full bool, err error) {
	for {
		call, ok := cursor.Peek()
		if !ok {
			return false, nil
		}
		if err := b.AddCall(call); err != nil {
			var budget *BudgetExceededError
			if errors.As(err, &budget) {
				return true, nil
			}
			return false, err
		}
		cursor.Advance()
	}
}

// Len is the number of accumulated calls.
func (b *Batch) Len() int {
	return len(b.calls)
}

// Transaction finalizes the batch into a submittable transaction.
func (b *Batch) Transaction(sender string, gasPrice, gasBudget uint64) *Transaction {
	return &Transaction{
		Sender:    sender,
		Site:      b.site,
		Calls:     b.calls,
		GasPrice:  gasPrice,
		GasBudget: gasBudget,
	}
}
