package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/scopelog/internal/errors"
)

// DefaultBufferSize is the write buffer of a file sink (32KB)
const DefaultBufferSize = 32 * 1024

// DefaultFlushInterval is the default interval for auto-flushing buffered writes
const DefaultFlushInterval = 5 * time.Second

// LogFilePermissions is the mode of newly created log files
const LogFilePermissions = 0o600

// FileSink appends lines to a file through a buffer that is flushed
// periodically, on Flush and on Close. It is safe for concurrent use.
type FileSink struct {
	mu            sync.Mutex
	file          *os.File
	writer        *bufio.Writer
	bufferSize    int
	filePath      string
	flushInterval time.Duration
	onFlushError  func(error)
	stopFlush     chan struct{}
	flushDone     chan struct{}
	closed        bool
}

// FileSinkOption configures a FileSink
type FileSinkOption func(*FileSink)

// WithBufferSize sets the buffer size for the writer
func WithBufferSize(size int) FileSinkOption {
	return func(w *FileSink) {
		if size > 0 {
			w.bufferSize = size
		}
	}
}

// WithFlushInterval sets the auto-flush interval. Pass 0 to disable auto-flush.
func WithFlushInterval(interval time.Duration) FileSinkOption {
	return func(w *FileSink) {
		w.flushInterval = max(interval, 0)
	}
}

// WithFlushErrorHandler is called when a background flush fails.
func WithFlushErrorHandler(fn func(error)) FileSinkOption {
	return func(w *FileSink) { w.onFlushError = fn }
}

// OpenFileSink opens filePath for appending, creating it and its directory
// if needed.
func OpenFileSink(filePath string, opts ...FileSinkOption) (*FileSink, error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fileError(filePath, err)
		}
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fileError(filePath, err)
	}
	return NewFileSink(file, opts...), nil
}

func fileError(path string, err error) error {
	return errors.New(fmt.Errorf("failed to open log file %s: %w", path, err)).
		Component(componentLogger).
		Category(errors.CategoryFileIO).
		Setting("output.target", path).
		Build()
}

// NewFileSink wraps an open file. The sink owns the file and closes it.
func NewFileSink(file *os.File, opts ...FileSinkOption) *FileSink {
	w := &FileSink{
		bufferSize:    DefaultBufferSize,
		file:          file,
		filePath:      file.Name(),
		flushInterval: DefaultFlushInterval,
		stopFlush:     make(chan struct{}),
		flushDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.writer = bufio.NewWriterSize(file, w.bufferSize)

	if w.flushInterval > 0 {
		go w.autoFlushLoop(time.NewTicker(w.flushInterval))
	} else {
		close(w.flushDone)
	}
	return w
}

// autoFlushLoop periodically flushes the buffer to the file
func (w *FileSink) autoFlushLoop(ticker *time.Ticker) {
	defer close(w.flushDone)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopFlush:
			return
		case <-ticker.C:
			if err := w.Flush(); err != nil && w.onFlushError != nil {
				w.onFlushError(err)
			}
		}
	}
}

// WriteLine implements Sink.
func (w *FileSink) WriteLine(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		return errors.New(fmt.Errorf("file sink %s is closed", w.filePath)).
			Component(componentLogger).
			Category(errors.CategoryState).
			Build()
	}
	if _, err := w.writer.WriteString(line); err != nil {
		return err
	}
	if !strings.HasSuffix(line, "\n") {
		return w.writer.WriteByte('\n')
	}
	return nil
}

// Write implements io.Writer.
func (w *FileSink) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writer == nil {
		return 0, fmt.Errorf("file sink %s is closed", w.filePath)
	}
	return w.writer.Write(p)
}

// Flush writes buffered lines to the file. It does not fsync.
func (w *FileSink) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *FileSink) flushLocked() error {
	if w.writer == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

// Sync flushes the buffer and syncs the file to disk.
func (w *FileSink) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushLocked(); err != nil {
		return err
	}
	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync file: %w", err)
		}
	}
	return nil
}

// Close stops the flush goroutine, flushes, syncs and closes the file.
// Close is idempotent.
func (w *FileSink) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stopFlush)
	<-w.flushDone

	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	if err := w.flushLocked(); err != nil {
		errs = append(errs, err)
	}
	if err := w.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("failed to sync file: %w", err))
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close file: %w", err))
	}
	w.file = nil
	w.writer = nil

	return errors.Join(errs...)
}

// FilePath returns the path of the underlying file
func (w *FileSink) FilePath() string {
	return w.filePath
}

// Buffered returns the number of bytes not yet written to the file
func (w *FileSink) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writer == nil {
		return 0
	}
	return w.writer.Buffered()
}

var (
	_ Sink      = (*FileSink)(nil)
	_ Flusher   = (*FileSink)(nil)
	_ io.Writer = (*FileSink)(nil)
	_ io.Closer = (*FileSink)(nil)
)
