package xlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/multierr"
)

var _ io.WriteCloser = (*singleLog)(nil)

// singleLog appends to one file without rotation.
// It is not thread-safe, the core locks it.
type singleLog struct {
	filePath    string
	filename    string
	dirReady    bool
	currentFile atomic.Pointer[os.File]
	closed      atomic.Bool
}

func (log *singleLog) Write(p []byte) (n int, err error) {
	if log.closed.Load() {
		return 0, io.EOF
	}

	if log.currentFile.Load() == nil {
		if err := log.openOrCreate(); err != nil {
			return 0, err
		}
	}
	return log.currentFile.Load().Write(p)
}

func (log *singleLog) Close() error {
	log.closed.Store(true)
	f := log.currentFile.Swap(nil)
	if f == nil {
		return nil
	}
	return multierr.Append(f.Sync(), f.Close())
}

func (log *singleLog) openOrCreate() error {
	if err := log.mkdir(); err != nil {
		return err
	}

	pathToLog := filepath.Join(log.filePath, log.filename)
	info, err := os.Stat(pathToLog)
	if os.IsNotExist(err) {
		return log.create()
	} else if err != nil {
		log.currentFile.Store(nil)
		return fmt.Errorf("[XLogger] stat log file <%s>: %w", pathToLog, err)
	}

	if info.IsDir() {
		log.currentFile.Store(nil)
		return fmt.Errorf("[XLogger] log file <%s> is a dir", pathToLog)
	}

	var f *os.File
	if f, err = os.OpenFile(pathToLog, os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
		return fmt.Errorf("[XLogger] failed to open an exists log file: %w", err)
	}
	log.currentFile.Store(f)
	return nil
}

// mkdir retries until the directory exists, the failures are reported
// on every call.
func (log *singleLog) mkdir() error {
	if log.dirReady {
		return nil
	}
	if log.filePath == "" {
		log.filePath = os.TempDir()
	}
	if log.filePath != os.TempDir() {
		if err := os.MkdirAll(log.filePath, 0o755); err != nil {
			return fmt.Errorf("[XLogger] mkdir <%s>: %w", log.filePath, err)
		}
	}
	log.dirReady = true
	return nil
}

func (log *singleLog) create() error {
	pathToLog := filepath.Join(log.filePath, log.filename)
	f, err := os.OpenFile(pathToLog, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("[XLogger] unable to create new log file <%s>: %w", pathToLog, err)
	}
	log.currentFile.Store(f)
	return nil
}

func newSingleLog(cfg *FileCoreConfig) *singleLog {
	if cfg == nil {
		return nil
	}
	return &singleLog{
		filePath: cfg.FilePath,
		filename: cfg.Filename,
	}
}
