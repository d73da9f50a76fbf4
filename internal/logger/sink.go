package logger

import (
	"io"
	"os"
	"strings"
	"sync"
)

// Sink receives rendered lines. Implementations must serialize writes so
// that lines are never interleaved.
type Sink interface {
	WriteLine(line string) error
}

// Flusher is implemented by sinks that buffer.
type Flusher interface {
	Flush() error
}

// WriterSink writes each line to an io.Writer under a mutex, appending a
// newline unless the line already ends with one.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// WriteLine implements Sink.
func (s *WriterSink) WriteLine(line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, line)
	return err
}

// Writer returns the wrapped writer.
func (s *WriterSink) Writer() io.Writer { return s.w }

// Flush flushes the wrapped writer if it buffers.
func (s *WriterSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Close closes the wrapped writer unless it is stdout or stderr.
func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == os.Stdout || s.w == os.Stderr {
		return nil
	}
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// FuncSink adapts a function to Sink. The function is called without
// locking.
type FuncSink func(line string) error

// WriteLine implements Sink.
func (f FuncSink) WriteLine(line string) error { return f(line) }

var (
	_ Sink    = (*WriterSink)(nil)
	_ Flusher = (*WriterSink)(nil)
	_ Sink    = FuncSink(nil)
)
