package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/loomworks/loom/pkg/logger"
)

// mockRPC is a mock implementation of RPC for testing.
type mockRPC struct {
	getObjectFunc         func(ctx context.Context, id ObjectID) (*Object, error)
	queryOwnedFunc        func(ctx context.Context, owner string) ([]ObjectRef, error)
	submitTransactionFunc func(ctx context.Context, tx *Transaction) (*TransactionEffects, error)
	gasPriceFunc          func(ctx context.Context) (uint64, error)
}

func (m *mockRPC) GetObject(ctx context.Context, id ObjectID) (*Object, error) {
	if m.getObjectFunc != nil {
		return m.getObjectFunc(ctx, id)
	}
	return nil, fmt.Errorf("GetObject not implemented")
}

func (m *mockRPC) QueryOwnedObjects(ctx context.Context, owner string) ([]ObjectRef, error) {
	if m.queryOwnedFunc != nil {
		return m.queryOwnedFunc(ctx, owner)
	}
	return nil, fmt.Errorf("QueryOwnedObjects not implemented")
}

func (m *mockRPC) SubmitTransaction(ctx context.Context, tx *Transaction) (*TransactionEffects, error) {
	if m.submitTransactionFunc != nil {
		return m.submitTransactionFunc(ctx, tx)
	}
	return nil, fmt.Errorf("SubmitTransaction not implemented")
}

func (m *mockRPC) ReferenceGasPrice(ctx context.Context) (uint64, error) {
	if m.gasPriceFunc != nil {
		return m.gasPriceFunc(ctx)
	}
	return 0, fmt.Errorf("ReferenceGasPrice not implemented")
}

var fastBackoff = BackoffConfig{MinDelay: time.Microsecond, MaxDelay: time.Millisecond, MaxRetries: 5}

func newTestClient(rpc RPC) *Client {
	return NewClient(rpc, NewVersionCache(), fastBackoff, &logger.NullLogger{})
}

func TestClientRetriesTransientGetObject(t *testing.T) {
	attempts := 0
	rpc := &mockRPC{
		getObjectFunc: func(ctx context.Context, id ObjectID) (*Object, error) {
			attempts++
			if attempts < 3 {
				return nil, &RPCError{Operation: "get", StatusCode: 503, Message: "unavailable"}
			}
			return &Object{Ref: ObjectRef{ID: id, Version: 1}}, nil
		},
	}

	obj, err := newTestClient(rpc).GetObject(context.Background(), "0x1")
	if err != nil {
		t.Fatalf("GetObject() error after retries: %v", err)
	}
	if obj.Ref.Version != 1 {
		t.Errorf("object version = %d, want 1", obj.Ref.Version)
	}
	if attempts != 3 {
		t.Errorf("rpc called %d times, want 3", attempts)
	}
}

func TestClientDoesNotRetryApplicationRejection(t *testing.T) {
	attempts := 0
	rpc := &mockRPC{
		submitTransactionFunc: func(ctx context.Context, tx *Transaction) (*TransactionEffects, error) {
			attempts++
			return nil, &RPCError{Operation: "submit", StatusCode: 400, Message: "insufficient gas"}
		},
	}

	_, err := newTestClient(rpc).SubmitTransaction(context.Background(), &Transaction{})
	if err == nil {
		t.Fatal("SubmitTransaction() must surface the rejection")
	}
	if attempts != 1 {
		t.Errorf("rpc called %d times, want 1 (no blind retry of a rejected transaction)", attempts)
	}
}

func TestClientExecutionFailureIsNotRetried(t *testing.T) {
	attempts := 0
	rpc := &mockRPC{
		submitTransactionFunc: func(ctx context.Context, tx *Transaction) (*TransactionEffects, error) {
			attempts++
			return &TransactionEffects{Digest: "tx1", Status: "failure", Error: "validation failed"}, nil
		},
	}

	_, err := newTestClient(rpc).SubmitTransaction(context.Background(), &Transaction{})

	var exec *ExecutionError
	if !errors.As(err, &exec) {
		t.Fatalf("SubmitTransaction() error = %v, want ExecutionError", err)
	}
	if attempts != 1 {
		t.Errorf("rpc called %d times, want 1", attempts)
	}
}

func TestClientSubmitUpdatesCache(t *testing.T) {
	rpc := &mockRPC{
		submitTransactionFunc: func(ctx context.Context, tx *Transaction) (*TransactionEffects, error) {
			return &TransactionEffects{
				Digest:  "tx1",
				Status:  StatusSuccess,
				Mutated: []ObjectRef{{ID: "0x1", Version: 8, Digest: "d8"}},
			}, nil
		},
	}

	client := newTestClient(rpc)
	if _, err := client.SubmitTransaction(context.Background(), &Transaction{}); err != nil {
		t.Fatalf("SubmitTransaction() error: %v", err)
	}

	entry, ok := client.Cache().Get("0x1")
	if !ok || entry.Version != 8 {
		t.Errorf("cache entry = %+v, %v; want version 8 observed", entry, ok)
	}
}

// A read replica that lags behind our own write must not feed a stale
// input into the next transaction.
func TestClientResolveRefDefendsAgainstStaleReads(t *testing.T) {
	rpc := &mockRPC{
		getObjectFunc: func(ctx context.Context, id ObjectID) (*Object, error) {
			return &Object{Ref: ObjectRef{ID: id, Version: 4, Digest: "stale"}}, nil
		},
		submitTransactionFunc: func(ctx context.Context, tx *Transaction) (*TransactionEffects, error) {
			return &TransactionEffects{
				Digest:  "tx1",
				Status:  StatusSuccess,
				Mutated: []ObjectRef{{ID: "0x1", Version: 9, Digest: "fresh"}},
			}, nil
		},
	}

	client := newTestClient(rpc)
	if _, err := client.SubmitTransaction(context.Background(), &Transaction{}); err != nil {
		t.Fatalf("SubmitTransaction() error: %v", err)
	}

	ref, err := client.ResolveRef(context.Background(), "0x1")
	if err != nil {
		t.Fatalf("ResolveRef() error: %v", err)
	}
	if ref.Version != 9 || ref.Digest != "fresh" {
		t.Errorf("ResolveRef() = %+v, want the cached version 9", ref)
	}
}

func TestClientGasPriceRetried(t *testing.T) {
	attempts := 0
	rpc := &mockRPC{
		gasPriceFunc: func(ctx context.Context) (uint64, error) {
			attempts++
			if attempts == 1 {
				return 0, &RPCError{Operation: "gas", StatusCode: 429, Message: "rate limited"}
			}
			return 750, nil
		},
	}

	price, err := newTestClient(rpc).ReferenceGasPrice(context.Background())
	if err != nil || price != 750 {
		t.Fatalf("ReferenceGasPrice() = %d, %v; want 750, nil", price, err)
	}
}

func TestFindCreated(t *testing.T) {
	effects := &TransactionEffects{
		Digest:  "tx1",
		Status:  StatusSuccess,
		Created: []ObjectRef{{ID: "0xsite", Version: 1, Digest: "d1"}},
		Mutated: []ObjectRef{{ID: "0xgas", Version: 2, Digest: "d2"}},
	}

	ref, err := FindCreated(effects)
	if err != nil {
		t.Fatalf("FindCreated() error: %v", err)
	}
	if ref.ID != "0xsite" {
		t.Errorf("FindCreated() = %s, want the created site object", ref.ID)
	}

	if _, err := FindCreated(&TransactionEffects{Digest: "tx2", Status: StatusSuccess}); err == nil {
		t.Error("effects without created objects must be an error")
	}
}

func TestClientRetryExhaustionSurfacesLastError(t *testing.T) {
	rpc := &mockRPC{
		getObjectFunc: func(ctx context.Context, id ObjectID) (*Object, error) {
			return nil, &RPCError{Operation: "get", StatusCode: 500, Message: "boom"}
		},
	}

	_, err := newTestClient(rpc).GetObject(context.Background(), "0x1")

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("GetObject() error = %v, want the last RPCError", err)
	}
	if rpcErr.StatusCode != 500 {
		t.Errorf("surfaced status %d, want 500", rpcErr.StatusCode)
	}
}
