package blobstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/zeebo/blake3"

	"github.com/loomworks/loom/internal/codec"
)

// S3Store implements the Store capability on top of an S3 bucket. It
// exists for self-hosted and development deployments where no blob
// network is available. A bundle becomes two objects: the
// concatenated contents under <id>.bundle and a CBOR patch index
// under <id>.index. Bundle IDs are content-addressed.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	prefix     string
	shardCount int
}

func NewS3Store(client *s3.Client, bucket, prefix string, shardCount int) *S3Store {
	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucket:     bucket,
		prefix:     prefix,
		shardCount: shardCount,
	}
}

type indexEntry struct {
	Identifier string `cbor:"1,keyasint"`
	PatchID    string `cbor:"2,keyasint"`
	Offset     int64  `cbor:"3,keyasint"`
	Length     int64  `cbor:"4,keyasint"`
}

func (s *S3Store) StoreBundle(ctx context.Context, inputs []BundleInput) (*StoreResult, error) {
	hasher := blake3.New()
	var blob bytes.Buffer
	entries := make([]indexEntry, 0, len(inputs))

	for i, input := range inputs {
		offset := int64(blob.Len())
		blob.Write(input.Contents)
		hasher.Write(input.Contents)
		entries = append(entries, indexEntry{
			Identifier: input.Identifier,
			PatchID:    fmt.Sprintf("p%d", i),
			Offset:     offset,
			Length:     int64(len(input.Contents)),
		})
	}

	bundleID := hex.EncodeToString(hasher.Sum(nil))

	index, err := codec.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode bundle index: %w", err)
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(bundleID + ".bundle")),
		Body:   bytes.NewReader(blob.Bytes()),
	})
	if err != nil {
		return nil, fmt.Errorf("upload bundle %s: %w", bundleID, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(bundleID + ".index")),
		Body:   bytes.NewReader(index),
	})
	if err != nil {
		return nil, fmt.Errorf("upload bundle index %s: %w", bundleID, err)
	}

	result := &StoreResult{BundleID: bundleID}
	for _, entry := range entries {
		result.Patches = append(result.Patches, Patch{
			Identifier: entry.Identifier,
			PatchID:    entry.PatchID,
		})
	}
	return result, nil
}

func (s *S3Store) ReadBundlePatch(ctx context.Context, bundleID, patchID string) ([]byte, error) {
	indexResp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(bundleID + ".index")),
	})
	if err != nil {
		return nil, fmt.Errorf("get bundle index %s: %w", bundleID, err)
	}
	defer indexResp.Body.Close()

	indexData, err := io.ReadAll(indexResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read bundle index: %w", err)
	}

	var entries []indexEntry
	if err := codec.Unmarshal(indexData, &entries); err != nil {
		return nil, fmt.Errorf("decode bundle index %s: %w", bundleID, err)
	}

	for _, entry := range entries {
		if entry.PatchID != patchID {
			continue
		}
		rangeHeader := fmt.Sprintf("bytes=%d-%d", entry.Offset, entry.Offset+entry.Length-1)
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(bundleID + ".bundle")),
			Range:  aws.String(rangeHeader),
		})
		if err != nil {
			return nil, fmt.Errorf("get bundle patch %s/%s: %w", bundleID, patchID, err)
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	}

	return nil, fmt.Errorf("bundle %s has no patch %s", bundleID, patchID)
}

func (s *S3Store) ShardCount(ctx context.Context) (int, error) {
	return s.shardCount, nil
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}
