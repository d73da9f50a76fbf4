package buildinfo

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                    string
		ctx                     *Context
		version, date, revision string
	}{
		{"nil context", nil, UnknownValue, UnknownValue, UnknownValue},
		{"empty values", NewContext("", "", ""), UnknownValue, UnknownValue, UnknownValue},
		{"injected", NewContext("1.0.0-beta.1", "2024-05-01", "abc123"), "1.0.0-beta.1", "2024-05-01", "abc123"},
		{"long commit", NewContext("1.0.0", "2024-05-01", "0123456789abcdef0123"), "1.0.0", "2024-05-01", "0123456789ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.Version())
			assert.Equal(t, tt.date, tt.ctx.BuildDate())
			assert.Equal(t, tt.revision, tt.ctx.Commit())
		})
	}
}

func TestString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.2.0 (commit abc123, built 2024-05-01)", NewContext("1.2.0", "2024-05-01", "abc123").String())
	assert.Equal(t, "unknown (commit unknown, built unknown)", (*Context)(nil).String())
}

func TestWithSettingsFillsOnlyMissingValues(t *testing.T) {
	t.Parallel()

	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "fedcba"},
		{Key: "vcs.time", Value: "2024-06-01T10:00:00Z"},
		{Key: "GOOS", Value: "linux"},
	}

	c := NewContext("1.0.0", "2024-05-01", "").withSettings(settings)
	assert.Equal(t, "fedcba", c.Commit())
	assert.Equal(t, "2024-05-01", c.BuildDate(), "injected date wins")

	c = (*Context)(nil).withSettings(settings)
	assert.Equal(t, UnknownValue, c.Version())
	assert.Equal(t, "2024-06-01T10:00:00Z", c.BuildDate())
}
