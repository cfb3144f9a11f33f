package commerceml

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source is a named, re-openable document.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// FileSource is a document on the local filesystem.
type FileSource struct {
	Path string
}

func (f FileSource) Name() string { return filepath.Base(f.Path) }

func (f FileSource) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// BytesSource holds a document in memory.
type BytesSource struct {
	FileName string
	Data     []byte
}

func (b BytesSource) Name() string { return b.FileName }

func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(b.Data))), nil
}

// DirSources lists the *.xml documents of dir in lexical order.
// A missing directory yields no sources.
func DirSources(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	sources := make([]Source, 0, len(names))
	for _, n := range names {
		sources = append(sources, FileSource{Path: filepath.Join(dir, n)})
	}
	return sources, nil
}
