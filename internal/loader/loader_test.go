package loader

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jc")
	want := "function int main(){ return 0; }\n"
	if err := os.WriteFile(path, []byte(want), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Default{}.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDefaultLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.jc")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Default{}.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("expected empty contents, got %q", got)
	}
}

func TestMemoryLoaderMissing(t *testing.T) {
	m := Memory{"a.jc": "x"}
	if _, err := m.Load("b.jc"); err == nil {
		t.Fatal("expected error for unregistered path")
	}
}
