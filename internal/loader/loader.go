// Package loader is the pluggable text-loader for file imports
// (spec.md §1: "file-system access for imports (treated as a
// pluggable text-loader)"). The default implementation memory-maps
// source files instead of reading them into a buffer, grounded on
// _examples/saferwall-pe's file.go ("Memory map the file instead of
// using read/write").
package loader

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// TextLoader is the narrow contract the Two-Pass Driver (C11) uses to
// fetch a translation unit's source text for a file import (spec.md
// §6 import resolution step 2). Hosts embedding the compiler may
// supply their own (e.g. reading from an archive or network source);
// package loader's Default is the mmap-backed file-system one.
type TextLoader interface {
	Load(path string) (string, error)
}

// Default is the mmap-backed file-system loader.
type Default struct{}

// Load memory-maps path read-only and returns its contents decoded as
// text. The mapping is closed before returning; callers that need the
// bytes to outlive the call get an independent copy, since an mmap
// region must not be referenced after unmapping.
func (Default) Load(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("loader: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("loader: %w", err)
	}
	if info.Size() == 0 {
		return "", nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return "", fmt.Errorf("loader: mmap %s: %w", path, err)
	}
	defer data.Unmap()

	out := make([]byte, len(data))
	copy(out, data)
	return string(out), nil
}

// Memory is an in-process TextLoader backed by a plain map, used in
// tests and by hosts that already have source text in memory (e.g.
// the compile(vm, name, source-text) entry point never touches the
// loader at all; Memory exists for import-resolution tests that want
// to avoid the filesystem).
type Memory map[string]string

func (m Memory) Load(path string) (string, error) {
	src, ok := m[path]
	if !ok {
		return "", fmt.Errorf("loader: no source registered for %q", path)
	}
	return src, nil
}
