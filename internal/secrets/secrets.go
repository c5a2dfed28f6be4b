// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Key files the orchestrator reads.
const (
	AnthropicKey  = "anthropic-api-key"
	LiteratureKey = "literature-api-key"
)

// Store is a loaded secret set keyed by filename.
type Store map[string]string

// Load reads all files in dir and returns a Store of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty Store.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Store{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Store)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Anthropic returns the Claude API key. A non-empty override, typically from
// the environment, wins over the secret file.
func (s Store) Anthropic(override string) string {
	if override != "" {
		return override
	}
	return s[AnthropicKey]
}

// Literature returns the bibliographic API key, empty when none is configured.
// The public arXiv API needs no key; rate-limit-exempt mirrors do.
func (s Store) Literature() string {
	return s[LiteratureKey]
}
