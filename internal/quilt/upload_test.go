package quilt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/loomworks/loom/internal/blobstore"
	"github.com/loomworks/loom/internal/retry"
	"github.com/loomworks/loom/pkg/logger"
)

// mockStore is a mock implementation of blobstore.Store for testing.
type mockStore struct {
	mu              sync.Mutex
	storeBundleFunc func(ctx context.Context, inputs []blobstore.BundleInput) (*blobstore.StoreResult, error)
	calls           int
}

func (m *mockStore) StoreBundle(ctx context.Context, inputs []blobstore.BundleInput) (*blobstore.StoreResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.storeBundleFunc != nil {
		return m.storeBundleFunc(ctx, inputs)
	}
	return nil, fmt.Errorf("StoreBundle not implemented")
}

func (m *mockStore) ReadBundlePatch(ctx context.Context, bundleID, patchID string) ([]byte, error) {
	return nil, fmt.Errorf("ReadBundlePatch not implemented")
}

func (m *mockStore) ShardCount(ctx context.Context) (int, error) {
	return 13, nil
}

func echoPatches(inputs []blobstore.BundleInput) *blobstore.StoreResult {
	result := &blobstore.StoreResult{BundleID: "bundle-1"}
	for i, input := range inputs {
		result.Patches = append(result.Patches, blobstore.Patch{
			Identifier: input.Identifier,
			PatchID:    fmt.Sprintf("p%d", i),
		})
	}
	return result
}

func writeTestFiles(t *testing.T, chunk *Chunk, names ...string) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("contents of "+name), 0o644); err != nil {
			t.Fatal(err)
		}
		chunk.Entries = append(chunk.Entries, Entry{
			Resource:   resourceOfSize("/"+name, 64),
			NeededSize: NeededSize(64),
		})
		chunk.Entries[len(chunk.Entries)-1].Resource.LocalPath = path
	}
}

func fastBackoff() *retry.Backoff {
	return &retry.Backoff{MinDelay: time.Microsecond, MaxDelay: time.Millisecond, MaxRetries: 3}
}

func newTestUploader(store blobstore.Store) *Uploader {
	return NewUploader(store, &logger.NullLogger{}, 2, fastBackoff)
}

func TestUploadMapsPatchesBack(t *testing.T) {
	store := &mockStore{
		storeBundleFunc: func(ctx context.Context, inputs []blobstore.BundleInput) (*blobstore.StoreResult, error) {
			return echoPatches(inputs), nil
		},
	}

	var chunk Chunk
	writeTestFiles(t, &chunk, "a.html", "b.css")

	if err := newTestUploader(store).Upload(context.Background(), []Chunk{chunk}); err != nil {
		t.Fatalf("Upload() error: %v", err)
	}

	for i, entry := range chunk.Entries {
		if entry.Resource.Blob.BundleID != "bundle-1" {
			t.Errorf("entry %d bundle = %q, want bundle-1", i, entry.Resource.Blob.BundleID)
		}
		if entry.Resource.Blob.PatchID != fmt.Sprintf("p%d", i) {
			t.Errorf("entry %d patch = %q, want p%d", i, entry.Resource.Blob.PatchID, i)
		}
	}
}

func TestUploadMissingPatchIsIntegrityError(t *testing.T) {
	store := &mockStore{
		storeBundleFunc: func(ctx context.Context, inputs []blobstore.BundleInput) (*blobstore.StoreResult, error) {
			result := echoPatches(inputs)
			result.Patches = result.Patches[:len(result.Patches)-1]
			return result, nil
		},
	}

	var chunk Chunk
	writeTestFiles(t, &chunk, "a.html", "b.css")

	err := newTestUploader(store).Upload(context.Background(), []Chunk{chunk})

	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("Upload() error = %v, want IntegrityError", err)
	}
	if integrity.Identifier != "/b.css" {
		t.Errorf("error names %q, want /b.css", integrity.Identifier)
	}
}

func TestUploadRetriesTransientFailures(t *testing.T) {
	attempts := 0
	store := &mockStore{}
	store.storeBundleFunc = func(ctx context.Context, inputs []blobstore.BundleInput) (*blobstore.StoreResult, error) {
		attempts++
		if attempts < 3 {
			return nil, &blobstore.RequestError{Operation: "store", StatusCode: 503, Message: "unavailable"}
		}
		return echoPatches(inputs), nil
	}

	var chunk Chunk
	writeTestFiles(t, &chunk, "a.html")

	if err := newTestUploader(store).Upload(context.Background(), []Chunk{chunk}); err != nil {
		t.Fatalf("Upload() error after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("store called %d times, want 3", attempts)
	}
}

func TestUploadDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	store := &mockStore{}
	store.storeBundleFunc = func(ctx context.Context, inputs []blobstore.BundleInput) (*blobstore.StoreResult, error) {
		attempts++
		return nil, &blobstore.RequestError{Operation: "store", StatusCode: 400, Message: "bad request"}
	}

	var chunk Chunk
	writeTestFiles(t, &chunk, "a.html")

	if err := newTestUploader(store).Upload(context.Background(), []Chunk{chunk}); err == nil {
		t.Fatal("Upload() must fail on a client error")
	}
	if attempts != 1 {
		t.Errorf("store called %d times, want 1", attempts)
	}
}

func TestUploadParallelChunks(t *testing.T) {
	store := &mockStore{
		storeBundleFunc: func(ctx context.Context, inputs []blobstore.BundleInput) (*blobstore.StoreResult, error) {
			return echoPatches(inputs), nil
		},
	}

	var chunks []Chunk
	for i := 0; i < 5; i++ {
		var chunk Chunk
		writeTestFiles(t, &chunk, fmt.Sprintf("f%d.txt", i))
		chunks = append(chunks, chunk)
	}

	if err := newTestUploader(store).Upload(context.Background(), chunks); err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if store.calls != 5 {
		t.Errorf("store called %d times, want 5", store.calls)
	}
	for _, chunk := range chunks {
		if chunk.Entries[0].Resource.Blob.BundleID == "" {
			t.Errorf("resource %s has no bundle reference", chunk.Entries[0].Resource.Path)
		}
	}
}
