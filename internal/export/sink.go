package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Sink stores a downloaded report.
type Sink interface {
	Save(name string, r io.Reader) (File, error)
}

// DirSink writes reports into Dir. The file appears under its final name only
// once fully written; a failed save leaves nothing behind.
type DirSink struct {
	Dir string
}

func (s DirSink) Save(name string, r io.Reader) (f File, err error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return File{}, fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return File{}, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return File{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return File{}, fmt.Errorf("close %s: %w", name, err)
	}
	path := filepath.Join(dir, name)
	if err = os.Rename(tmp.Name(), path); err != nil {
		return File{}, fmt.Errorf("rename %s: %w", name, err)
	}
	return File{Name: name, Path: path, Size: n}, nil
}

// MemorySink keeps the last saved report in memory, for streaming it back to
// a browser.
type MemorySink struct {
	mu   sync.Mutex
	name string
	data []byte
}

func (s *MemorySink) Save(name string, r io.Reader) (File, error) {
	var buf bytes.Buffer
	n, err := buf.ReadFrom(r)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", name, err)
	}
	s.mu.Lock()
	s.name, s.data = name, buf.Bytes()
	s.mu.Unlock()
	return File{Name: name, Size: n}, nil
}

func (s *MemorySink) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *MemorySink) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}
