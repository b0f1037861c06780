// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

// Package persona resolves persona and skill markdown files from
// configured directories. It is thin glue over the filesystem: list
// what exists, read one by name.
package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Library looks up named markdown files across an ordered list of
// directories. Earlier directories shadow later ones.
type Library struct {
	directories []string
}

// NewLibrary creates a Library over the given directories. Missing
// directories are tolerated — they simply contribute no entries.
func NewLibrary(directories []string) *Library {
	return &Library{directories: directories}
}

// List returns the names (file stems) of all markdown files across
// the library's directories, sorted and deduplicated.
func (library *Library) List() ([]string, error) {
	seen := make(map[string]bool)
	for _, directory := range library.directories {
		entries, err := os.ReadDir(directory)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("listing %s: %w", directory, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			seen[strings.TrimSuffix(entry.Name(), ".md")] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the content of the named file. The name is a bare stem
// — path separators and traversal are rejected before touching the
// filesystem.
func (library *Library) Read(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid name %q", name)
	}

	for _, directory := range library.directories {
		path := filepath.Join(directory, name+".md")
		content, err := os.ReadFile(path)
		if err == nil {
			return string(content), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("%q not found in any configured directory", name)
}
