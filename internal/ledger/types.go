package ledger

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/internal/codec"
)

// ObjectID is the handle of a ledger-resident object.
type ObjectID string

// ObjectRef pins an object at a specific version. Transactions consume
// refs as inputs; a stale version makes the ledger reject the
// transaction or lock a superseded object.
type ObjectRef struct {
	ID      ObjectID `cbor:"1,keyasint"`
	Version uint64   `cbor:"2,keyasint"`
	Digest  string   `cbor:"3,keyasint"`
}

// Object is a fetched ledger object with its serialized contents.
type Object struct {
	Ref      ObjectRef       `cbor:"1,keyasint"`
	Contents codec.RawMessage `cbor:"2,keyasint"`
}

// TransactionEffects is the ledger's report of an executed
// transaction.
type TransactionEffects struct {
	Digest  string      `cbor:"1,keyasint"`
	Status  string      `cbor:"2,keyasint"`
	Error   string      `cbor:"3,keyasint,omitempty"`
	Created []ObjectRef `cbor:"4,keyasint,omitempty"`
	Mutated []ObjectRef `cbor:"5,keyasint,omitempty"`
	GasUsed uint64      `cbor:"6,keyasint"`
}

const StatusSuccess = "success"

// Touched returns every object reference the transaction created or
// mutated.
func (e *TransactionEffects) Touched() []ObjectRef {
	refs := make([]ObjectRef, 0, len(e.Created)+len(e.Mutated))
	refs = append(refs, e.Created...)
	refs = append(refs, e.Mutated...)
	return refs
}

// Transaction is one batch of calls submitted atomically. Site is the
// shared manifest object input; it is nil while the first batch of a
// fresh publish creates the site.
type Transaction struct {
	Sender    string     `cbor:"1,keyasint"`
	Site      *ObjectRef `cbor:"2,keyasint,omitempty"`
	Calls     []Call     `cbor:"3,keyasint"`
	GasPrice  uint64     `cbor:"4,keyasint"`
	GasBudget uint64     `cbor:"5,keyasint"`
}

// RPC is the raw ledger transport. Implementations return RPCError
// (or another retry.TransientError) for transport-level failures so
// the retrying client can classify them.
type RPC interface {
	GetObject(ctx context.Context, id ObjectID) (*Object, error)
	QueryOwnedObjects(ctx context.Context, owner string) ([]ObjectRef, error)
	SubmitTransaction(ctx context.Context, tx *Transaction) (*TransactionEffects, error)
	ReferenceGasPrice(ctx context.Context) (uint64, error)
}

// RPCError is a failed ledger request.
type RPCError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Transient reports whether the failure is server-side and worth
// retrying.
func (e *RPCError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ExecutionError is a transaction the ledger executed and rejected.
// Retrying it blindly risks double execution, so it is never
// classified transient.
type ExecutionError struct {
	Digest string
	Status string
	Reason string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("transaction %s: %s: %s", e.Digest, e.Status, e.Reason)
}
