package site

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Metadata carries the descriptive fields recorded on the site object.
type Metadata struct {
	Link        string `yaml:"link,omitempty" cbor:"1,keyasint,omitempty"`
	ImageURL    string `yaml:"image_url,omitempty" cbor:"2,keyasint,omitempty"`
	Description string `yaml:"description,omitempty" cbor:"3,keyasint,omitempty"`
	ProjectURL  string `yaml:"project_url,omitempty" cbor:"4,keyasint,omitempty"`
	Creator     string `yaml:"creator,omitempty" cbor:"5,keyasint,omitempty"`
}

// Config is the site configuration file (loom.yaml).
type Config struct {
	// Headers maps glob-style path patterns to HTTP headers. The
	// pattern with the most path segments that matches a resource
	// wins.
	Headers map[string]map[string]string `yaml:"headers,omitempty"`
	// Routes maps source paths to target paths.
	Routes map[string]string `yaml:"routes,omitempty"`
	// Metadata describes the site on the ledger.
	Metadata *Metadata `yaml:"metadata,omitempty"`
	// SiteName overrides the default site name.
	SiteName string `yaml:"site_name,omitempty"`
	// ObjectID is the handle of a previously published site object.
	// When set, publishing updates that object instead of creating a
	// new one.
	ObjectID string `yaml:"object_id,omitempty"`
	// Ignore lists glob patterns of local paths excluded from
	// publishing.
	Ignore []string `yaml:"ignore,omitempty"`
}

// LoadConfig reads and validates a site configuration file. A missing
// file yields an empty config: every field is optional.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects malformed glob patterns up front so a bad pattern
// aborts the pass before any remote state is touched.
func (c *Config) Validate() error {
	for pattern := range c.Headers {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid header pattern %q", pattern)
		}
	}
	for _, pattern := range c.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}
	return nil
}

// IsIgnored reports whether a canonical path matches any ignore
// pattern. Patterns match against the path without its leading slash.
func (c *Config) IsIgnored(path string) bool {
	rel := strings.TrimPrefix(path, "/")
	for _, pattern := range c.Ignore {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// HeadersFor returns the configured headers for a resource path. Among
// all matching patterns the one with the most path segments wins;
// equal-segment ties break lexicographically for determinism. Header
// names are lower-cased.
func (c *Config) HeadersFor(path string) map[string]string {
	rel := strings.TrimPrefix(path, "/")

	var bestPattern string
	bestSegments := -1
	patterns := make([]string, 0, len(c.Headers))
	for pattern := range c.Headers {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)

	for _, pattern := range patterns {
		matched, _ := doublestar.Match(strings.TrimPrefix(pattern, "/"), rel)
		if !matched {
			continue
		}
		segments := len(strings.Split(strings.Trim(pattern, "/"), "/"))
		if segments > bestSegments {
			bestSegments = segments
			bestPattern = pattern
		}
	}

	if bestSegments < 0 {
		return nil
	}
	return NormalizeHeaders(c.Headers[bestPattern])
}
