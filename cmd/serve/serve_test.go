package serve

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/scopelog/internal/conf"
	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/logger"
)

func TestRunStopsWithContext(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "serve.log")
	c := conf.NewContext()
	c.Settings.DefaultLevel = "note"
	c.Settings.Format.Template = "[{level}] {msg}"
	c.Settings.Output.Target = logPath

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, Run(ctx, c, Options{Listen: "127.0.0.1:0", Interval: 20 * time.Millisecond}))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, "[note] serving\n")
	assert.Contains(t, log, "[progress] enter demo\n")
	assert.Contains(t, log, "[note] stopped\n")
}

func TestRunRejectsInterval(t *testing.T) {
	err := Run(context.Background(), conf.NewContext(), Options{Listen: "127.0.0.1:0"})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestReloadAppliesRules(t *testing.T) {
	reg := logger.NewRegistry(logger.LevelWarn)
	d := logger.NewDispatcher(reg, nil, logger.FuncSink(func(string) error { return nil }))

	s := conf.DefaultSettings()
	s.DefaultLevel = "debug"
	s.Rules = []logger.RuleConfig{{Func: "parse*", Level: "trace"}}
	reload(context.Background(), d, s, nil)

	assert.Equal(t, logger.LevelDebug, reg.Default())
	assert.Len(t, reg.Rules(), 1)

	reload(context.Background(), d, nil, errors.NewStd("broken file"))
	assert.Equal(t, logger.LevelDebug, reg.Default(), "a failed reload keeps the rules")
}
