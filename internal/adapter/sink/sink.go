// Package sink implements the record output writer: an append-only,
// newline-delimited JSON file, one CompositeRecord per line, the file
// handle held open for the process lifetime.
package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zaxtyson/spidercrawl/internal/core/domain"
)

// FileSink appends one CompositeRecord per line to a single file.
type FileSink struct {
	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	enc *json.Encoder
}

// New opens path for append, creating it and any parent directory if needed.
func New(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sink: creating directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: opening %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false) // <, > and & written as-is; encoding/json never escapes non-ASCII text
	return &FileSink{f: f, w: w, enc: enc}, nil
}

// Append writes rec as one self-delimiting JSON line. Each call flushes
// immediately so interleaved concurrent appends remain line-granular.
func (s *FileSink) Append(rec *domain.CompositeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("sink: encoding record: %w", err)
	}
	return s.w.Flush()
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("sink: flushing: %w", err)
	}
	return s.f.Close()
}
