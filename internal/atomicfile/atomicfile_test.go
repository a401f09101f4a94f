package atomicfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tamlil/tamlil/internal/atomicfile"
)

func TestWriteFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	if err := atomicfile.WriteFile(path, []byte(`{"v":1}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != `{"v":1}` {
		t.Errorf("content = %q, want %q", got, `{"v":1}`)
	}

	// Overwrite replaces content and leaves no temp files behind.
	if err := atomicfile.WriteFile(path, []byte(`{"v":2}`), 0o644); err != nil {
		t.Fatalf("WriteFile() overwrite error = %v", err)
	}
	got, _ = os.ReadFile(path)
	if string(got) != `{"v":2}` {
		t.Errorf("content after overwrite = %q, want %q", got, `{"v":2}`)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want 1 (no temp leftovers)", len(entries))
	}
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nope", "out.json")
	if err := atomicfile.WriteFile(path, []byte("x"), 0o644); err == nil {
		t.Error("WriteFile() expected error for missing directory")
	}
}
