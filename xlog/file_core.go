package xlog

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
)

var (
	_ XLogCore  = (*fileCore)(nil)
	_ io.Closer = (*fileCore)(nil)
)

type fileCore struct {
	*commonCore
	writer io.WriteCloser
}

func (cc *fileCore) Close() error {
	if cc.writer == nil {
		return nil
	}
	return cc.writer.Close()
}

type FileCoreConfig struct {
	FilePath string `json:"filePath" yaml:"filePath"`
	Filename string `json:"filename" yaml:"filename"`
}

// ParseFileCoreConfig splits the path to log into the directory and the file name.
func ParseFileCoreConfig(pathToLog string) *FileCoreConfig {
	if pathToLog == "" {
		return nil
	}
	return &FileCoreConfig{
		FilePath: filepath.Dir(pathToLog),
		Filename: filepath.Base(pathToLog),
	}
}

func newFileCore(cfg *FileCoreConfig) XLogCoreConstructor {
	return func(
		lvlEnabler zapcore.LevelEnabler,
		encoder logEncoderType,
		lvlEnc zapcore.LevelEncoder,
		tsEnc zapcore.TimeEncoder,
	) (XLogCore, error) {
		fileCfg := cfg
		if fileCfg == nil {
			fileCfg = &FileCoreConfig{
				Filename: filepath.Base(os.Args[0]) + "_xlog.log",
				FilePath: os.TempDir(),
			}
		}

		fileWriter := newSingleLog(fileCfg)
		// Opens eagerly, the bad paths fail at the startup.
		if err := fileWriter.openOrCreate(); err != nil {
			return nil, err
		}
		return &fileCore{
			commonCore: newCommonCore(zapcore.Lock(zapcore.AddSync(fileWriter)), lvlEnabler, encoder, lvlEnc, tsEnc),
			writer:     fileWriter,
		}, nil
	}
}
