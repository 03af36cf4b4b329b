package ledger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loomworks/loom/internal/codec"
)

// HTTPRPC talks to a ledger full node over its HTTP API. Payloads use
// the ledger's canonical CBOR encoding.
type HTTPRPC struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRPC(baseURL string, timeout time.Duration) *HTTPRPC {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &HTTPRPC{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRPC) GetObject(ctx context.Context, id ObjectID) (*Object, error) {
	body, err := r.do(ctx, http.MethodGet, "/v1/objects/"+url.PathEscape(string(id)), nil)
	if err != nil {
		return nil, err
	}
	var obj Object
	if err := codec.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("decode object %s: %w", id, err)
	}
	return &obj, nil
}

func (r *HTTPRPC) QueryOwnedObjects(ctx context.Context, owner string) ([]ObjectRef, error) {
	body, err := r.do(ctx, http.MethodGet, "/v1/objects?owner="+url.QueryEscape(owner), nil)
	if err != nil {
		return nil, err
	}
	var refs []ObjectRef
	if err := codec.Unmarshal(body, &refs); err != nil {
		return nil, fmt.Errorf("decode owned objects: %w", err)
	}
	return refs, nil
}

func (r *HTTPRPC) SubmitTransaction(ctx context.Context, tx *Transaction) (*TransactionEffects, error) {
	payload, err := codec.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	body, err := r.do(ctx, http.MethodPost, "/v1/transactions", payload)
	if err != nil {
		return nil, err
	}
	var effects TransactionEffects
	if err := codec.Unmarshal(body, &effects); err != nil {
		return nil, fmt.Errorf("decode transaction effects: %w", err)
	}
	return &effects, nil
}

func (r *HTTPRPC) ReferenceGasPrice(ctx context.Context) (uint64, error) {
	body, err := r.do(ctx, http.MethodGet, "/v1/gas-price", nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Price uint64 `cbor:"1,keyasint"`
	}
	if err := codec.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode gas price: %w", err)
	}
	return resp.Price, nil
}

func (r *HTTPRPC) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/cbor")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RPCError{
			Operation:  method + " " + path,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
