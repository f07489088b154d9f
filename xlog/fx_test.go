package xlog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxevent"
)

func TestFxXLogger_LogEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerWriter(buf),
	)
	require.NoError(t, err)

	fxl := NewFxXLogger(logger)
	fxl.LogEvent(&fxevent.Started{})
	fxl.LogEvent(&fxevent.OnStartExecuted{FunctionName: "run", Err: errors.New("boom")})
	fxl.LogEvent(&fxevent.Provided{OutputTypeNames: []string{"xlog.XLogger"}, ConstructorName: "newLogger"})
	fxl.LogEvent(&fxevent.Invoked{FunctionName: "ok"})

	lines := decodeLines(t, buf)
	require.Len(t, lines, 3)
	for _, line := range lines {
		require.Equal(t, "fx", line["component"])
		require.NotContains(t, line, "callAt")
	}
	require.Equal(t, "RUNNING", lines[0]["msg"])
	require.Equal(t, "HOOK OnStart executed failed", lines[1]["msg"])
	require.Equal(t, "boom", lines[1]["error"])
	require.Equal(t, "run", lines[1]["function"])
	require.Equal(t, "xlog.XLogger", lines[2]["rtype"])

	var nilLogger *FxXLogger
	nilLogger.LogEvent(&fxevent.Started{})
	NewFxXLogger(nil).LogEvent(&fxevent.Started{})
}
