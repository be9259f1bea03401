// Package fallback appends serialized events to a local file when no
// remote delivery tier is reachable.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/okian/adrec/pkg/logger"
)

const filePermission = 0o644

// ErrWrite wraps every failure to append to the fallback file.
var ErrWrite = errors.New("fallback write failed")

// File appends one line per payload to a file. Appends are serialized so
// lines from concurrent requests never interleave.
type File struct {
	path   string
	mu     sync.Mutex
	logger logger.Logger
}

// Option applies a configuration option to the File.
type Option func(*File)

// WithLogger sets a custom logger for the file appender.
func WithLogger(l logger.Logger) Option {
	return func(f *File) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates an appender for path. The file is created on first write.
func New(path string, opts ...Option) *File {
	f := &File{
		path:   path,
		logger: logger.Get().Named("fallback"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the file being appended to.
func (f *File) Path() string { return f.path }

// Append writes payload followed by a newline and syncs it to disk. The
// file is opened and closed on every call.
func (f *File) Append(ctx context.Context, payload []byte) (err error) {
	line := make([]byte, 0, len(payload)+1)
	line = append(line, payload...)
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
	}

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePermission)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrWrite, f.path, err)
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close: %w", ErrWrite, cerr)
		}
	}()

	if _, err := fh.Write(line); err != nil {
		return fmt.Errorf("%w: write: %w", ErrWrite, err)
	}
	if err := fh.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %w", ErrWrite, err)
	}

	f.logger.Warn(ctx, "event written to fallback file", logger.String("path", f.path))
	return nil
}
