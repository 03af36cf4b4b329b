package site

import (
	"mime"
	"path/filepath"
)

const defaultContentType = "application/octet-stream"

func guessContentType(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return defaultContentType
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		return defaultContentType
	}

	return contentType
}
