package quilt

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loomworks/loom/internal/blobstore"
	"github.com/loomworks/loom/internal/retry"
	"github.com/loomworks/loom/internal/site"
	"github.com/loomworks/loom/pkg/logger"
)

// IntegrityError reports a bundle response missing a patch for an
// input the store call was given. This is a bug in the storage
// network or the integration and is never retried.
type IntegrityError struct {
	BundleID   string
	Identifier string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("bundle %s response has no patch for input %q", e.BundleID, e.Identifier)
}

// Uploader drives the store call for each packed chunk and folds the
// returned bundle and patch identifiers back into the resources.
type Uploader struct {
	store       blobstore.Store
	logger      logger.Logger
	concurrency int
	newBackoff  func() *retry.Backoff
}

func NewUploader(store blobstore.Store, log logger.Logger, concurrency int, newBackoff func() *retry.Backoff) *Uploader {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Uploader{
		store:       store,
		logger:      log,
		concurrency: concurrency,
		newBackoff:  newBackoff,
	}
}

// Upload stores every chunk, up to the configured number of chunks in
// flight at once. Chunks share no state, so parallel store calls are
// safe; each failure aborts the group. On success every entry's
// resource carries its bundle and patch reference.
func (u *Uploader) Upload(ctx context.Context, chunks []Chunk) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(u.concurrency)

	for i := range chunks {
		chunk := &chunks[i]
		group.Go(func() error {
			return u.uploadChunk(ctx, chunk)
		})
	}

	return group.Wait()
}

func (u *Uploader) uploadChunk(ctx context.Context, chunk *Chunk) error {
	inputs := make([]blobstore.BundleInput, 0, len(chunk.Entries))
	for _, entry := range chunk.Entries {
		contents, err := os.ReadFile(entry.Resource.LocalPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Resource.LocalPath, err)
		}
		inputs = append(inputs, blobstore.BundleInput{
			Identifier: entry.Resource.Path,
			Contents:   contents,
		})
	}

	result, err := retry.Do(ctx, u.newBackoff(), u.notify("store bundle"),
		func(ctx context.Context) (*blobstore.StoreResult, error) {
			return u.store.StoreBundle(ctx, inputs)
		})
	if err != nil {
		return fmt.Errorf("store bundle of %d files: %w", len(inputs), err)
	}

	for _, entry := range chunk.Entries {
		patch, ok := result.PatchFor(entry.Resource.Path)
		if !ok {
			return &IntegrityError{BundleID: result.BundleID, Identifier: entry.Resource.Path}
		}
		entry.Resource.Blob = site.BlobRef{BundleID: result.BundleID, PatchID: patch.PatchID}
	}

	u.logger.Store(result.BundleID, len(chunk.Entries), chunk.Size())
	return nil
}

func (u *Uploader) notify(operation string) retry.Notify {
	return func(attempt int, delay time.Duration, err error) {
		u.logger.Retry(operation, attempt, delay, err)
	}
}
