package site

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 hash of a resource's raw bytes. It drives
// change detection and integrity verification.
type Digest [32]byte

// String returns the canonical hex form used in manifests and logs.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText implements encoding.TextMarshaler so digests serialize
// as hex strings in CBOR and YAML.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest parses a 64-character hex string into a Digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parsing content hash: %w", err)
	}
	if len(decoded) != 32 {
		return d, fmt.Errorf("content hash is %d bytes, want 32", len(decoded))
	}
	copy(d[:], decoded)
	return d, nil
}

// HashBytes computes the content digest of data.
func HashBytes(data []byte) Digest {
	var d Digest
	sum := blake3.Sum256(data)
	copy(d[:], sum[:])
	return d
}

// HashFile computes the content digest of the file at path.
func HashFile(path string) (Digest, error) {
	var d Digest
	file, err := os.Open(path)
	if err != nil {
		return d, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return d, fmt.Errorf("hash %s: %w", path, err)
	}
	copy(d[:], hasher.Sum(nil))
	return d, nil
}
