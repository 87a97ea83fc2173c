// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file in the directory holds one secret: the filename is the key name
// and the trimmed file contents are the value.
//
// Recognized key files: gemini-api-key, openai-api-key, anthropic-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDir is the directory the CLI reads secrets from.
const DefaultDir = ".secrets"

// Store maps secret names to values.
type Store map[string]string

// Load reads every regular, non-hidden file in dir. A missing directory is
// not an error and yields an empty Store. Files that cannot be read are
// reported on stderr and skipped; empty files are ignored.
func Load(dir string) (Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Store{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	store := make(Store)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			store[name] = value
		}
	}
	return store, nil
}

// Lookup returns the secret stored under name. It is safe on a nil Store.
func (s Store) Lookup(name string) (string, bool) {
	v, ok := s[name]
	return v, ok
}

// APIKey returns the key for an LLM provider, read from "<provider>-api-key".
func (s Store) APIKey(provider string) (string, bool) {
	return s.Lookup(KeyName(provider))
}

// KeyName returns the secret filename for a provider's API key.
func KeyName(provider string) string {
	return strings.ToLower(provider) + "-api-key"
}
