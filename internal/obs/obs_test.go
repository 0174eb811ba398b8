package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrom_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	ctx := WithCheck(WithRunID(context.Background(), "run-123"), "windmill")
	From(ctx).Info("check_started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "check_started", entry["msg"])
	require.Equal(t, "run-123", entry["run_id"])
	require.Equal(t, "windmill", entry["check"])
}

func TestFrom_NoCorrelation(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	From(context.Background()).Info("plain")
	require.NotContains(t, buf.String(), "run_id")
	require.Equal(t, "unknown", RunIDFromContext(context.Background()))
}

func TestPkg_TagsPackage(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	Pkg("login").Debug("round")
	require.Contains(t, buf.String(), `"pkg":"login"`)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNewRunID_Unique(t *testing.T) {
	t.Parallel()

	a, b := NewRunID(), NewRunID()
	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "run-"))
}
