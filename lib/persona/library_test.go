// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package persona

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMarkdown(t *testing.T, directory, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(directory, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
}

func TestListMergesAndSorts(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	writeMarkdown(t, first, "reviewer.md", "review things")
	writeMarkdown(t, first, "notes.txt", "not markdown")
	writeMarkdown(t, second, "architect.md", "design things")
	writeMarkdown(t, second, "reviewer.md", "shadowed")

	library := NewLibrary([]string{first, second, "/nonexistent/dir"})
	names, err := library.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "architect" || names[1] != "reviewer" {
		t.Errorf("names = %v, want [architect reviewer]", names)
	}
}

func TestReadEarlierDirectoryShadows(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	writeMarkdown(t, first, "reviewer.md", "primary")
	writeMarkdown(t, second, "reviewer.md", "shadowed")

	library := NewLibrary([]string{first, second})
	content, err := library.Read("reviewer")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if content != "primary" {
		t.Errorf("content = %q, want primary", content)
	}
}

func TestReadUnknownName(t *testing.T) {
	t.Parallel()

	library := NewLibrary([]string{t.TempDir()})
	if _, err := library.Read("ghost"); err == nil {
		t.Error("unknown name should fail")
	}
}

func TestReadRejectsTraversal(t *testing.T) {
	t.Parallel()

	library := NewLibrary([]string{t.TempDir()})
	for _, name := range []string{"", "../etc/passwd", "a/b", `a\b`} {
		if _, err := library.Read(name); err == nil {
			t.Errorf("Read(%q) should be rejected", name)
		}
	}
}
