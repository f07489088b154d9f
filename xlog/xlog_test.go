package xlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
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
}

func TestParseLogLevelAndEncoder(t *testing.T) {
	testcases := []struct {
		in  string
		lvl logLevel
	}{
		{"", LogLevelDebug},
		{"debug", LogLevelDebug},
		{"info", LogLevelInfo},
		{"Warn", LogLevelWarn},
		{"ERROR", LogLevelError},
		{"fatal", LogLevelDebug},
	}
	for _, tc := range testcases {
		require.Equal(t, tc.lvl, ParseLogLevel(tc.in), tc.in)
	}

	enc, err := ParseLogEncoder("json")
	require.NoError(t, err)
	require.Equal(t, JSON, enc)
	enc, err = ParseLogEncoder("text")
	require.NoError(t, err)
	require.Equal(t, PlainText, enc)
	_, err = ParseLogEncoder("yaml")
	require.ErrorIs(t, err, ErrXLoggerUnknownEncoder)
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	res := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		res = append(res, m)
	}
	return res
}

func TestXLogger_Writer_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewXLogger(
		WithXLoggerLevel(LogLevelInfo),
		WithXLoggerEncoder(JSON),
		WithXLoggerWriter(buf),
		WithXLoggerContextFieldExtract("session", "sid"),
		WithXLoggerContextFieldExtract("trace"),
		WithXLoggerContextFieldExtract("ignored", ContextKeyMapToOmitempty),
	)
	require.NoError(t, err)
	require.Equal(t, "INFO", logger.Level())

	logger.Debug("unprintable debug message")
	logger.Info("info message", zap.String("key", "bob"))
	ctx := context.WithValue(context.Background(), ContextKey("session"), "s1")
	logger.WarnContext(ctx, "warn message")
	logger.Error(errors.New("boom"), "error message")
	logger.Named("tree").Info("named message")
	require.NoError(t, logger.Close())

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)

	require.Equal(t, "INFO", lines[0]["lvl"])
	require.Equal(t, "info message", lines[0]["msg"])
	require.Equal(t, "bob", lines[0]["key"])
	require.Contains(t, lines[0], "callAt")
	require.Contains(t, lines[0], "ts")

	require.Equal(t, "WARN", lines[1]["lvl"])
	require.Equal(t, "s1", lines[1]["sid"])
	require.Equal(t, "nil", lines[1]["trace"])
	require.NotContains(t, lines[1], "ignored")

	require.Equal(t, "ERROR", lines[2]["lvl"])
	require.Equal(t, "boom", lines[2]["error"])

	require.Equal(t, "tree", lines[3]["component"])
}

func TestXLogger_IncreaseLogLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerWriter(buf),
	)
	require.NoError(t, err)

	child := logger.Named("child")
	logger.IncreaseLogLevel(zapcore.WarnLevel)
	require.Equal(t, "WARN", logger.Level())
	require.Equal(t, "WARN", child.Level())
	logger.Logf(zapcore.InfoLevel, "unprintable info message %d", 1)
	child.Logf(zapcore.InfoLevel, "unprintable info message %d", 2)
	logger.Logf(zapcore.WarnLevel, "printable warn message %d", 3)

	logger.IncreaseLogLevel(zapcore.DebugLevel)
	child.Debug("printable debug message 4")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	require.Equal(t, "printable warn message 3", lines[0]["msg"])
	require.Equal(t, "printable debug message 4", lines[1]["msg"])
}

func TestXLogger_PlainText(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerEncoder(PlainText),
		WithXLoggerWriter(buf),
	)
	require.NoError(t, err)
	logger.Info("plain message")
	require.Contains(t, buf.String(), "INFO")
	require.Contains(t, buf.String(), "plain message")
}

func TestXLogger_BadOptions(t *testing.T) {
	_, err := NewXLogger(WithXLoggerEncoder(_encMax))
	require.ErrorIs(t, err, ErrXLoggerUnknownEncoder)

	_, err = NewXLogger(WithXLoggerWriter(nil))
	require.ErrorIs(t, err, ErrXLoggerNilWriter)
}

func TestXLogger_FileWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	pathToLog := filepath.Join(dir, "rbapp.log")

	logger, err := NewXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerFileWriter(ParseFileCoreConfig(pathToLog)),
	)
	require.NoError(t, err)
	logger.Info("file message 1")
	require.NoError(t, logger.Close())

	// Appends to the exists file.
	logger, err = NewXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerFileWriter(ParseFileCoreConfig(pathToLog)),
	)
	require.NoError(t, err)
	logger.Info("file message 2")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(pathToLog)
	require.NoError(t, err)
	lines := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, lines, 2)
	require.Equal(t, "file message 1", lines[0]["msg"])
	require.Equal(t, "file message 2", lines[1]["msg"])
}

func TestXLogger_FileWriter_IsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "rbapp.log"), 0o755))

	_, err := NewXLogger(WithXLoggerFileWriter(ParseFileCoreConfig(filepath.Join(dir, "rbapp.log"))))
	require.Error(t, err)
	require.Contains(t, err.Error(), "is a dir")
}

func TestXLogger_FileWriter_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.log")
	bad := filepath.Join(dir, "bad.log")
	require.NoError(t, os.Mkdir(bad, 0o755))

	logger, err := NewXLogger(
		WithXLoggerFileWriter(ParseFileCoreConfig(good)),
		WithXLoggerFileWriter(ParseFileCoreConfig(bad)),
	)
	require.Error(t, err)
	require.Nil(t, logger)
	require.Contains(t, err.Error(), "is a dir")

	// The opened file is released and can be reopened.
	logger, err = NewXLogger(WithXLoggerFileWriter(ParseFileCoreConfig(good)))
	require.NoError(t, err)
	require.NoError(t, logger.Close())
}

func TestSingleLog_MkdirRetry(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "logs")
	// A regular file blocks the directory creation.
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o644))

	log := newSingleLog(&FileCoreConfig{FilePath: dir, Filename: "single.log"})
	require.Error(t, log.openOrCreate())
	require.Error(t, log.openOrCreate())

	require.NoError(t, os.Remove(dir))
	require.NoError(t, log.openOrCreate())
	_, err := log.Write([]byte("abc\n"))
	require.NoError(t, err)
	require.NoError(t, log.Close())

	data, err := os.ReadFile(filepath.Join(dir, "single.log"))
	require.NoError(t, err)
	require.Equal(t, "abc\n", string(data))
}

func TestFileCore_DefaultConfigNotShared(t *testing.T) {
	cc := newFileCore(nil)
	for i := 0; i < 2; i++ {
		core, err := cc(zapcore.DebugLevel, JSON, zapcore.CapitalLevelEncoder, zapcore.ISO8601TimeEncoder)
		require.NoError(t, err)
		require.NoError(t, core.(io.Closer).Close())
	}

	cfg := &FileCoreConfig{FilePath: t.TempDir(), Filename: "core.log"}
	expected := *cfg
	core, err := newFileCore(cfg)(zapcore.DebugLevel, JSON, zapcore.CapitalLevelEncoder, zapcore.ISO8601TimeEncoder)
	require.NoError(t, err)
	require.NoError(t, core.(io.Closer).Close())
	require.Equal(t, expected, *cfg)
}

func TestXLogger_Encoders(t *testing.T) {
	testcases := []struct {
		name    string
		opts    []XLoggerOption
		checkFn func(t *testing.T, line map[string]any)
	}{
		{
			name: "lowercase level",
			opts: []XLoggerOption{WithXLoggerLevelEncoder(zapcore.LowercaseLevelEncoder)},
			checkFn: func(t *testing.T, line map[string]any) {
				require.Equal(t, "info", line["lvl"])
			},
		},
		{
			name: "nil level encoder falls back to color",
			opts: []XLoggerOption{WithXLoggerLevelEncoder(nil)},
			checkFn: func(t *testing.T, line map[string]any) {
				lvl, ok := line["lvl"].(string)
				require.True(t, ok)
				require.Contains(t, lvl, "INFO")
				require.NotEqual(t, "INFO", lvl)
			},
		},
		{
			name: "epoch time",
			opts: []XLoggerOption{WithXLoggerTimeEncoder(zapcore.EpochTimeEncoder)},
			checkFn: func(t *testing.T, line map[string]any) {
				ts, ok := line["ts"].(float64)
				require.True(t, ok)
				require.Greater(t, ts, float64(0))
			},
		},
		{
			name: "nil time encoder falls back to iso8601",
			opts: []XLoggerOption{WithXLoggerTimeEncoder(nil)},
			checkFn: func(t *testing.T, line map[string]any) {
				ts, ok := line["ts"].(string)
				require.True(t, ok)
				require.Contains(t, ts, "T")
			},
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			buf := &bytes.Buffer{}
			opts := append([]XLoggerOption{
				WithXLoggerLevel(LogLevelDebug),
				WithXLoggerWriter(buf),
			}, tc.opts...)
			logger, err := NewXLogger(opts...)
			require.NoError(tt, err)
			logger.Info("encoded message")
			require.NoError(tt, logger.Close())

			lines := decodeLines(tt, buf)
			require.Len(tt, lines, 1)
			tc.checkFn(tt, lines[0])
		})
	}
}

func TestXLogger_ContextVariants(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerWriter(buf),
		WithXLoggerContextFieldExtract("session", "sid"),
	)
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), ContextKey("session"), "s2")
	logger.DebugContext(ctx, "debug message")
	logger.InfoContext(ctx, "info message", zap.Int("n", 1))
	logger.ErrorContext(ctx, errors.New("boom"), "error message")
	logger.ErrorContext(context.WithValue(context.Background(), "session", "s3"), nil, "plain key message")
	require.NoError(t, logger.Close())

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)
	testcases := []struct {
		lvl string
		msg string
		sid string
	}{
		{"DEBUG", "debug message", "s2"},
		{"INFO", "info message", "s2"},
		{"ERROR", "error message", "s2"},
		{"ERROR", "plain key message", "s3"},
	}
	for i, tc := range testcases {
		require.Equal(t, tc.lvl, lines[i]["lvl"])
		require.Equal(t, tc.msg, lines[i]["msg"])
		require.Equal(t, tc.sid, lines[i]["sid"])
	}
	require.Equal(t, float64(1), lines[1]["n"])
	require.Equal(t, "boom", lines[2]["error"])
	require.NotContains(t, lines[3], "error")
}

func TestXLogger_StdWriters(t *testing.T) {
	testcases := []struct {
		name string
		opt  XLoggerOption
	}{
		{"stderr", WithXLoggerStdErrWriter()},
		{"stdout", WithXLoggerStdOutWriter()},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			logger, err := NewXLogger(WithXLoggerLevel(LogLevelError), tc.opt)
			require.NoError(tt, err)
			logger.Info("unprintable message")
			// Sync on the standard streams is not checked.
			_ = logger.Close()
		})
	}
}

func TestSingleLog_WriteAfterClose(t *testing.T) {
	log := newSingleLog(&FileCoreConfig{FilePath: t.TempDir(), Filename: "single.log"})
	n, err := log.Write([]byte("abc\n"))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.NoError(t, log.Close())
	require.NoError(t, log.Close())

	_, err = log.Write([]byte("abc\n"))
	require.ErrorIs(t, err, io.EOF)
	require.Nil(t, newSingleLog(nil))
	require.Nil(t, ParseFileCoreConfig(""))
}

func TestXLogger_Nop(t *testing.T) {
	logger := NewNopXLogger()
	logger.Info("dropped")
	logger.Named("x").Error(errors.New("dropped"), "dropped")
	require.NoError(t, logger.Close())
}

func TestXLogger_DataRace(t *testing.T) {
	logger, err := NewXLogger(WithXLoggerWriter(io.Discard))
	require.NoError(t, err)
	lvls := []zapcore.Level{
		zapcore.DebugLevel,
		zapcore.InfoLevel,
		zapcore.WarnLevel,
		zapcore.ErrorLevel,
	}
	n := int32(len(lvls))
	var wg sync.WaitGroup
	total := 10
	wg.Add(total)
	for i := 0; i < total; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rng := randv2.Int32N(n)
				if i*total+j == 666 {
					logger.IncreaseLogLevel(lvls[rng])
				}
				logger.Logf(lvls[rng], "message i: %d; j: %d", i, j)
			}
		}(i)
	}
	wg.Wait()
	_ = logger.Sync()
}

func BenchmarkXLogger_Zap(b *testing.B) {
	logger, err := NewXLogger(WithXLoggerWriter(io.Discard), WithXLoggerLevel(LogLevelInfo))
	require.NoError(b, err)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("message")
	}
	b.ReportAllocs()
}
