package xlog

import (
	"go.uber.org/zap/zapcore"
)

var _ XLogCore = (*consoleCore)(nil)

type consoleCore struct {
	*commonCore
}

func newConsoleCore(writer logOutWriterType) XLogCoreConstructor {
	return func(
		lvlEnabler zapcore.LevelEnabler,
		encoder logEncoderType,
		lvlEnc zapcore.LevelEncoder,
		tsEnc zapcore.TimeEncoder,
	) (XLogCore, error) {
		if writer >= _writerMax {
			writer = StdErr
		}
		return &consoleCore{
			commonCore: newCommonCore(getOutWriterByType(writer), lvlEnabler, encoder, lvlEnc, tsEnc),
		}, nil
	}
}

// newWriterCore is the console core to an arbitrary writer.
func newWriterCore(ws zapcore.WriteSyncer) XLogCoreConstructor {
	return func(
		lvlEnabler zapcore.LevelEnabler,
		encoder logEncoderType,
		lvlEnc zapcore.LevelEncoder,
		tsEnc zapcore.TimeEncoder,
	) (XLogCore, error) {
		if ws == nil {
			return nil, ErrXLoggerNilWriter
		}
		return &consoleCore{
			commonCore: newCommonCore(zapcore.Lock(ws), lvlEnabler, encoder, lvlEnc, tsEnc),
		}, nil
	}
}
