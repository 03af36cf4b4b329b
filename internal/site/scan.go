package site

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Scan walks the directory rooted at dir and builds the local resource
// set: every regular file not matched by an ignore pattern, hashed and
// tagged with its configured headers plus a content-type header.
func Scan(dir string, cfg *Config) (*ResourceSet, error) {
	absRoot, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	set := NewResourceSet()

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return fmt.Errorf("get relative path: %w", err)
		}

		canonical := CanonicalPath(filepath.ToSlash(relPath))
		if cfg.IsIgnored(canonical) {
			return nil
		}

		fileInfo, err := d.Info()
		if err != nil {
			return fmt.Errorf("get file info: %w", err)
		}

		hash, err := HashFile(path)
		if err != nil {
			return err
		}

		headers := cfg.HeadersFor(canonical)
		if headers == nil {
			headers = make(map[string]string)
		}
		if _, ok := headers["content-type"]; !ok {
			headers["content-type"] = guessContentType(path)
		}

		set.Add(&Resource{
			Path:          canonical,
			ContentHash:   hash,
			UnencodedSize: fileInfo.Size(),
			Headers:       headers,
			LocalPath:     path,
		})

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	return set, nil
}
