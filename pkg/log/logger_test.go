package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mlerrors "github.com/YuminosukeSato/intelliml/pkg/errors"
)

func TestTestLoggerCapturesFields(t *testing.T) {
	logger, buffer := NewTestLogger(LevelInfo)

	logger.Debug("hidden")
	logger.With(JobIDKey, "job-1").Info("candidate trained", ModelIDKey, "svm", ScoreKey, 0.9)
	logger.Error("candidate failed", errors.New("boom"), ModelIDKey, "knn")

	assert.NotContains(t, buffer.String(), "hidden")
	assert.True(t, logger.ContainsField(JobIDKey, "job-1"))
	assert.True(t, logger.ContainsField(ScoreKey, 0.9))
	assert.True(t, logger.ContainsField(ErrAttrKey, "boom"))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestProviderComponentName(t *testing.T) {
	provider, _ := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)
	t.Cleanup(func() { SetProvider(&defaultProvider{}) })

	GetLoggerWithName("trainer").Info("run started")

	assert.True(t, provider.Logger().ContainsField(ComponentKey, "trainer"))
}

func TestHandlerAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(NewHandler(&buf, slog.LevelDebug)))

	logger.Error("explain failed", errors.New("attribution diverged"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "explain failed", record["message"])
	assert.Equal(t, "ERROR", record["severity"])
	assert.True(t, strings.Contains(record[StacktraceAttrKey].(string), "logger_test.go"))
}

func TestToLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ToLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ToLogLevel("WARN"))
	assert.Panics(t, func() { ToLogLevel("verbose") })
}

func TestBridgeWarnings(t *testing.T) {
	var buf bytes.Buffer
	BridgeWarnings(&buf)
	t.Cleanup(func() { mlerrors.SetZerologWarnFunc(nil) })

	mlerrors.Warn(mlerrors.NewMissingFeatureWarning("serving.PredictBatch", []string{"age"}, "training"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "warnings", entry[ComponentKey])
	assert.Contains(t, entry["message"], "age")
	assert.Contains(t, entry, "warning")
}
