package demo

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/scopelog/internal/format"
	"github.com/tphakala/scopelog/internal/logger"
)

type lineBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *lineBuffer) WriteLine(line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	return nil
}

func newDispatcher(t *testing.T, reg *logger.Registry) (*logger.Dispatcher, *lineBuffer) {
	t.Helper()
	f, err := format.New(format.Config{Template: "{level_short} {depth_indent}{msg}", Indent: "  "}, format.WithColor(false))
	require.NoError(t, err)
	buf := &lineBuffer{}
	return logger.NewDispatcher(reg, f, buf), buf
}

func TestWrap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		width int
		want  []string
	}{
		{"a bb ccc dddd", 6, []string{"a bb", "ccc", "dddd"}},
		{"unbreakableword here", 5, []string{"unbreakableword", "here"}},
		{"keep as is", 0, []string{"keep as is"}},
		{"", 10, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, wrap(tt.in, tt.width), tt.in)
	}
}

func TestRunRendersDocument(t *testing.T) {
	t.Parallel()

	d, _ := newDispatcher(t, logger.NewRegistry(logger.LevelOff))
	out, stats := Run(context.Background(), d, SampleText, 40)

	assert.Equal(t, Stats{Sections: 3, Lines: stats.Lines, Empty: 1}, stats)
	assert.Equal(t, "RELEASE NOTES", out[0])
	assert.Equal(t, "KNOWN ISSUES", out[len(out)-1])
	for _, line := range out {
		if !strings.Contains(line, " ") {
			continue
		}
		assert.LessOrEqual(t, len(line), 40, line)
	}
}

func TestRunIndentsNestedScopes(t *testing.T) {
	t.Parallel()

	d, buf := newDispatcher(t, logger.NewRegistry(logger.LevelNote))
	Run(context.Background(), d, SampleText, 40)

	assert.Equal(t, []string{
		"prog enter demo",
		"note       empty section",
		"prog exit demo",
	}, buf.lines)
}

func TestRunFunctionRuleSelectsParser(t *testing.T) {
	t.Parallel()

	reg := logger.NewRegistry(logger.LevelWarn)
	_, err := reg.Register(logger.Rule{Pattern: logger.Pattern{Func: "parse*"}, Threshold: logger.LevelTrace})
	require.NoError(t, err)

	d, buf := newDispatcher(t, reg)
	Run(context.Background(), d, SampleText, 40)

	assert.Equal(t, []string{
		"dbug   enter parseDocument",
		"trce     heading Release notes",
		"trce     heading Formatting",
		"trce     heading Known issues",
		"dbug     parsed 3 sections",
		"dbug   exit parseDocument",
	}, buf.lines)
}
