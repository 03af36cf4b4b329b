package blobstore

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

// HTTPStore talks to a blob network publisher (writes) and aggregator
// (reads) over their HTTP APIs. Payloads are CBOR.
type HTTPStore struct {
	publisherURL  string
	aggregatorURL string
	client        *http.Client
}

type HTTPStoreOptions struct {
	PublisherURL  string
	AggregatorURL string
	Timeout       time.Duration
}

func NewHTTPStore(opts HTTPStoreOptions) *HTTPStore {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPStore{
		publisherURL:  strings.TrimSuffix(opts.PublisherURL, "/"),
		aggregatorURL: strings.TrimSuffix(opts.AggregatorURL, "/"),
		client:        &http.Client{Timeout: timeout},
	}
}

type storeBundleRequest struct {
	Inputs []BundleInput `cbor:"1,keyasint"`
}

type storeBundleResponse struct {
	BundleID string  `cbor:"1,keyasint"`
	Patches  []Patch `cbor:"2,keyasint"`
}

type statusResponse struct {
	ShardCount int `cbor:"1,keyasint"`
}

func (s *HTTPStore) StoreBundle(ctx context.Context, inputs []BundleInput) (*StoreResult, error) {
	payload, err := codec.Marshal(storeBundleRequest{Inputs: inputs})
	if err != nil {
		return nil, fmt.Errorf("encode bundle request: %w", err)
	}

	body, err := s.do(ctx, http.MethodPut, s.publisherURL+"/v1/bundles", payload)
	if err != nil {
		return nil, err
	}

	var resp storeBundleResponse
	if err := codec.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode bundle response: %w", err)
	}
	return &StoreResult{BundleID: resp.BundleID, Patches: resp.Patches}, nil
}

func (s *HTTPStore) ReadBundlePatch(ctx context.Context, bundleID, patchID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v1/bundles/%s/patches/%s",
		s.aggregatorURL, url.PathEscape(bundleID), url.PathEscape(patchID))
	return s.do(ctx, http.MethodGet, endpoint, nil)
}

func (s *HTTPStore) ShardCount(ctx context.Context) (int, error) {
	body, err := s.do(ctx, http.MethodGet, s.publisherURL+"/v1/status", nil)
	if err != nil {
		return 0, err
	}

	var resp statusResponse
	if err := codec.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode status response: %w", err)
	}
	return resp.ShardCount, nil
}

func (s *HTTPStore) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/cbor")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{
			Operation:  method + " " + endpoint,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
