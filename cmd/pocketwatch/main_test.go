package main

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketwatch/internal/config"
	"pocketwatch/internal/web"
)

func TestSetupLogging(t *testing.T) {
	oldLevel, oldFormatter := log.GetLevel(), log.StandardLogger().Formatter
	t.Cleanup(func() {
		log.SetLevel(oldLevel)
		log.SetFormatter(oldFormatter)
		log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	})

	buf := web.NewLogBuffer(10)
	require.NoError(t, setupLogging(config.LogConfig{Level: "debug", Format: "json"}, buf))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	_, isJSON := log.StandardLogger().Formatter.(*log.JSONFormatter)
	assert.True(t, isJSON)

	log.Info("hello from test")
	lines, _ := buf.Snapshot(10)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1], "hello from test")

	require.Error(t, setupLogging(config.LogConfig{Level: "loud"}, nil))
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Web = config.WebConfig{Enable: true, Listen: "127.0.0.1:0"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, run(ctx, cfg, web.NewLogBuffer(10)))
}

func TestRun_WebStopsBeforeJournalCloses(t *testing.T) {
	cfg := testConfig(t)
	cfg.Web = config.WebConfig{Enable: true, Listen: "127.0.0.1:0"}

	var recentErr error
	served := false
	swap(t, &serveWebFn, func(ctx context.Context, _ string, d web.Deps) error {
		served = true
		<-ctx.Done()
		// A slow in-flight request finishing during shutdown.
		time.Sleep(50 * time.Millisecond)
		_, recentErr = d.Captures.Recent(1)
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, run(ctx, cfg, nil))
	assert.True(t, served)
	assert.NoError(t, recentErr)
}

func TestRun_BadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.Level = "loud"
	require.Error(t, run(context.Background(), cfg, nil))
}
