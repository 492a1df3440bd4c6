package xzap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func TestSetUpRejectsUnknownMode(t *testing.T) {
	_, err := SetUp(LogConf{Mode: "syslog"})
	assert.Error(t, err)
}

func TestSetUpRejectsBadLevel(t *testing.T) {
	_, err := SetUp(LogConf{Mode: ConsoleMode, Level: "loud"})
	assert.Error(t, err)
}

func TestSetUpFileMode(t *testing.T) {
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	dir := t.TempDir()
	l, err := SetUp(LogConf{Mode: FileMode, Path: dir, Level: "debug", ServiceName: "orderbook"})
	require.NoError(t, err)

	WithContext(context.Background()).Info("hello")
	_ = l.Sync()

	_, err = os.Stat(filepath.Join(dir, defaultLogFile))
	assert.NoError(t, err)
}

func TestWithContextAddsTraceFields(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	assert.NotNil(t, WithContext(ctx))
}
