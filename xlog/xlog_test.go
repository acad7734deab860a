package xlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xtree/lib/infra"
)

func TestLogLevelString(t *testing.T) {
	require.Equal(t, "DEBUG", LogLevelDebug.String())
	require.Equal(t, "INFO", LogLevelInfo.String())
	require.Equal(t, "WARN", LogLevelWarn.String())
	require.Equal(t, "ERROR", LogLevelError.String())
	require.Equal(t, zapcore.DebugLevel, LogLevelDebug.zapLevel())
	require.Equal(t, zapcore.InfoLevel, LogLevelInfo.zapLevel())
	require.Equal(t, zapcore.WarnLevel, LogLevelWarn.zapLevel())
	require.Equal(t, zapcore.ErrorLevel, LogLevelError.zapLevel())

	require.Equal(t, zapcore.DebugLevel, getLogLevelOrDefault(""))
	require.Equal(t, zapcore.InfoLevel, getLogLevelOrDefault(" info "))
	require.Equal(t, zapcore.WarnLevel, getLogLevelOrDefault("WARN"))
	require.Equal(t, zapcore.ErrorLevel, getLogLevelOrDefault("error"))
	require.Equal(t, zapcore.DebugLevel, getLogLevelOrDefault("verbose"))
}

type testMemOutWriter struct {
	data []byte
}

func (w *testMemOutWriter) Write(p []byte) (n int, err error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *testMemOutWriter) Reset() {
	w.data = make([]byte, 0, 4096)
}

func (w *testMemOutWriter) entries(t *testing.T) []map[string]any {
	lines := bytes.Split(bytes.TrimSpace(w.data), []byte("\n"))
	res := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal(line, &entry))
		res = append(res, entry)
	}
	return res
}

func newTestMemLogger(t *testing.T, opts ...XLoggerOption) (XLogger, *testMemOutWriter) {
	w := &testMemOutWriter{data: make([]byte, 0, 4096)}
	writerMap[testMemAsOut] = zapcore.AddSync(w)
	t.Cleanup(func() {
		delete(writerMap, testMemAsOut)
	})
	opts = append([]XLoggerOption{
		WithXLoggerWriter(testMemAsOut),
		WithXLoggerEncoder(JSON),
	}, opts...)
	return NewXLogger(opts...), w
}

func TestXLoggerLevels(t *testing.T) {
	logger, w := newTestMemLogger(t, WithXLoggerLevel(LogLevelInfo))
	require.Equal(t, "info", logger.Level())

	logger.Debug("hidden")
	logger.Info("shown", zap.Int("nodes", 3))
	logger.Warn("warned")
	logger.Error(errors.New("bad link"), "failed")
	logger.Logf(zapcore.InfoLevel, "formatted %d", 7)

	entries := w.entries(t)
	require.Len(t, entries, 4)
	require.Equal(t, "shown", entries[0]["msg"])
	require.Equal(t, "INFO", entries[0]["lvl"])
	require.Equal(t, float64(3), entries[0]["nodes"])
	require.Equal(t, "WARN", entries[1]["lvl"])
	require.Equal(t, "bad link", entries[2]["error"])
	require.Equal(t, "formatted 7", entries[3]["msg"])
	require.Contains(t, entries[0]["callAt"], "xlog_test.go")

	w.Reset()
	logger.IncreaseLogLevel(zapcore.DebugLevel)
	require.Equal(t, "debug", logger.Level())
	logger.Debug("visible now")
	entries = w.entries(t)
	require.Len(t, entries, 1)
	require.Equal(t, "DEBUG", entries[0]["lvl"])
	require.NoError(t, logger.Sync())
}

func TestXLoggerErrorStack(t *testing.T) {
	logger, w := newTestMemLogger(t, WithXLoggerLevel(LogLevelDebug))

	err := infra.WrapErrorStackWithMessage(errors.New("cycle"), "attach")
	logger.ErrorStack(err, "rejected")
	logger.ErrorStack(errors.New("plain"), "plain rejected")

	entries := w.entries(t)
	require.Len(t, entries, 2)
	require.Equal(t, "attach: cycle", entries[0]["error"])
	stack, ok := entries[0]["errorStack"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, stack)
	require.Equal(t, "plain", entries[1]["error"])
	require.Nil(t, entries[1]["errorStack"])
}

func TestXLoggerContextFields(t *testing.T) {
	logger, w := newTestMemLogger(t,
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerContextFieldExtract("scenario", "scn"),
		WithXLoggerContextFieldExtract("worker"),
		WithXLoggerContextFieldExtract("secret", ContextKeyMapToOmitempty),
		WithXLoggerContextFieldExtract(""),
	)

	ctx := context.WithValue(context.Background(), ContextKey("scenario"), "s-1")
	ctx = context.WithValue(ctx, ContextKey("secret"), "hidden")
	logger.DebugContext(ctx, "d")
	logger.InfoContext(ctx, "i")
	logger.WarnContext(ctx, "w")
	logger.ErrorContext(ctx, errors.New("e"), "e")

	entries := w.entries(t)
	require.Len(t, entries, 4)
	for _, entry := range entries {
		require.Equal(t, "s-1", entry["scn"])
		require.Equal(t, "nil", entry["worker"])
		require.NotContains(t, entry, "secret")
	}
	require.Equal(t, "e", entries[3]["error"])
}

func TestXLoggerOptionErrors(t *testing.T) {
	require.Panics(t, func() {
		_ = NewXLogger(WithXLoggerEncoder(_encMax))
	})
	require.Panics(t, func() {
		_ = NewXLogger(WithXLoggerWriter(_writerMax))
	})
	require.NotPanics(t, func() {
		_ = NewXLogger(
			nil,
			WithXLoggerLevelEncoder(nil),
			WithXLoggerTimeEncoder(nil),
			WithXLoggerEncoder(PlainText),
		)
	})
}

func TestComponentLoggers(t *testing.T) {
	logger, w := newTestMemLogger(t, WithXLoggerLevel(LogLevelDebug))

	NewAntsXLogger(logger).Printf("worker %d panicked", 3)
	NewFxXLogger(logger).LogEvent(&fxevent.Started{})
	NewFxXLogger(logger).LogEvent(&fxevent.Invoked{FunctionName: "run", Err: errors.New("boom")})

	entries := w.entries(t)
	require.Len(t, entries, 3)
	require.Equal(t, "Ants", entries[0]["component"])
	require.Equal(t, "ERROR", entries[0]["lvl"])
	require.Equal(t, "worker 3 panicked", entries[0]["msg"])
	require.NotContains(t, entries[0], "callAt")
	require.Equal(t, "Fx", entries[1]["component"])
	require.Equal(t, "RUNNING", entries[1]["msg"])
	require.Equal(t, "boom", entries[2]["error"])

	var nilAnts *AntsXLogger
	var nilFx *FxXLogger
	require.NotPanics(t, func() {
		nilAnts.Printf("ignored")
		nilFx.LogEvent(&fxevent.Started{})
	})
}
