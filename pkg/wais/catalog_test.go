package wais

import (
	"os"
	"path/filepath"
	"testing"
)

func writeShareFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestServerCatalogListExcludesDotfiles(t *testing.T) {
	dir := t.TempDir()
	writeShareFile(t, dir, "a.txt", "hello")
	writeShareFile(t, dir, "b.md", "# hi")
	writeShareFile(t, dir, ".hidden", "secret")

	catalog := NewServerCatalog(dir)
	files, err := catalog.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a.txt", "b.md"}
	if len(files) != len(want) {
		t.Fatalf("List() = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestServerCatalogSearchCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeShareFile(t, dir, "a.txt", "hello")
	writeShareFile(t, dir, "b.md", "# hi")

	catalog := NewServerCatalog(dir)
	results, err := catalog.Search(".MD")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0] != "b.md" {
		t.Errorf("Search(\".MD\") = %v, want [b.md]", results)
	}
}

func TestServerCatalogSearchEmptyQueryReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeShareFile(t, dir, "a.txt", "hello")

	catalog := NewServerCatalog(dir)
	results, err := catalog.Search("")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search(\"\") = %v, want empty (not all files)", results)
	}
}

func TestServerCatalogResolveRejectsTraversal_P3(t *testing.T) {
	dir := t.TempDir()
	catalog := NewServerCatalog(dir)

	_, err := catalog.Resolve("../etc/passwd")
	if err == nil {
		t.Fatal("expected error for traversal attempt")
	}
}

func TestServerCatalogResolveAllowsMissingFile(t *testing.T) {
	// Resolve is the traversal check only; a missing file is not a
	// traversal attempt, so it resolves successfully and "File not found"
	// is left to FileSender's own os.Stat (spec §8 seed scenario 5).
	dir := t.TempDir()
	catalog := NewServerCatalog(dir)

	path, err := catalog.Resolve("missing")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatal("file should not actually exist on disk")
	}
}

func TestServerCatalogResolveSucceedsForRegularFile(t *testing.T) {
	dir := t.TempDir()
	writeShareFile(t, dir, "a.txt", "hello")
	catalog := NewServerCatalog(dir)

	path, err := catalog.Resolve("a.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q, want hello", data)
	}
}
