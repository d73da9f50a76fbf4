package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/scopelog/internal/errors"
)

func TestFileSink_WriteLine(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "test.log")

	sink, err := OpenFileSink(logPath, WithFlushInterval(0))
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	require.NoError(t, sink.WriteLine("first"))
	require.NoError(t, sink.WriteLine("second\n"))

	// Data should be buffered, not on disk yet
	assert.Positive(t, sink.Buffered())

	require.NoError(t, sink.Flush())
	assert.Equal(t, 0, sink.Buffered())

	content, err := os.ReadFile(logPath) //nolint:gosec // test file path from t.TempDir()
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(content))
}

func TestFileSink_AutoFlush(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "autoflush.log")

	sink, err := OpenFileSink(logPath, WithFlushInterval(20*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	require.NoError(t, sink.WriteLine("auto-flush test data"))

	assert.Eventually(t, func() bool {
		content, err := os.ReadFile(logPath) //nolint:gosec // test file path from t.TempDir()
		return err == nil && string(content) == "auto-flush test data\n"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileSink_Close(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "close.log")

	sink, err := OpenFileSink(logPath)
	require.NoError(t, err)

	require.NoError(t, sink.WriteLine("data before close"))
	require.NoError(t, sink.Close())

	content, err := os.ReadFile(logPath) //nolint:gosec // test file path from t.TempDir()
	require.NoError(t, err)
	assert.Equal(t, "data before close\n", string(content))

	// closing twice is fine, writing is not
	require.NoError(t, sink.Close())
	err = sink.WriteLine("should fail")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestFileSink_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "concurrent.log")

	sink, err := OpenFileSink(logPath, WithBufferSize(512), WithFlushInterval(5*time.Millisecond))
	require.NoError(t, err)

	const numGoroutines = 10
	const writesPerGoroutine = 100

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			for range writesPerGoroutine {
				assert.NoError(t, sink.WriteLine("goroutine write with a reasonably long body"))
			}
		})
	}
	wg.Wait()
	require.NoError(t, sink.Close())

	content, err := os.ReadFile(logPath) //nolint:gosec // test file path from t.TempDir()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	assert.Len(t, lines, numGoroutines*writesPerGoroutine)
	for _, line := range lines {
		assert.Equal(t, "goroutine write with a reasonably long body", line)
	}
}

func TestFileSink_Sync(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "sync.log")

	sink, err := OpenFileSink(logPath)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	_, err = sink.Write([]byte("sync test data\n"))
	require.NoError(t, err)
	require.NoError(t, sink.Sync())

	content, err := os.ReadFile(logPath) //nolint:gosec // test file path from t.TempDir()
	require.NoError(t, err)
	assert.Equal(t, "sync test data\n", string(content))
	assert.Equal(t, logPath, sink.FilePath())
}

func TestFileSink_AppendMode(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "nested", "dir", "append.log")

	for _, line := range []string{"first", "second"} {
		sink, err := OpenFileSink(logPath)
		require.NoError(t, err)
		require.NoError(t, sink.WriteLine(line))
		require.NoError(t, sink.Close())
	}

	content, err := os.ReadFile(logPath) //nolint:gosec // test file path from t.TempDir()
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(content))

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(LogFilePermissions), info.Mode().Perm())
}

func TestOpenFileSink_InvalidPath(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "plain-file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := OpenFileSink(filepath.Join(blocker, "test.log"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
	field, _, ok := errors.Setting(err)
	require.True(t, ok)
	assert.Equal(t, "output.target", field)
}

func BenchmarkFileSink_WriteLine(b *testing.B) {
	sink, err := OpenFileSink(filepath.Join(b.TempDir(), "bench.log"))
	require.NoError(b, err)
	defer func() { _ = sink.Close() }()

	line := "[info] parser/lex.go:42 token accepted"

	b.ReportAllocs()
	for b.Loop() {
		if err := sink.WriteLine(line); err != nil {
			b.Fatal(err)
		}
	}
}

func TestFileSink_FlushErrorHandler(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "readonly.log")
	require.NoError(t, os.WriteFile(logPath, nil, 0o600))
	file, err := os.Open(logPath) //nolint:gosec // test file path from t.TempDir()
	require.NoError(t, err)

	failures := make(chan error, 1)
	sink := NewFileSink(file,
		WithFlushInterval(10*time.Millisecond),
		WithFlushErrorHandler(func(err error) {
			select {
			case failures <- err:
			default:
			}
		}),
	)
	defer func() { _ = sink.Close() }()

	require.NoError(t, sink.WriteLine("never reaches the file"))

	select {
	case err := <-failures:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("flush error was not reported")
	}
}
