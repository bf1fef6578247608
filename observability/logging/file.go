package logging

import (
	"io"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig describes a size-rotated log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Output returns stdout when no file is configured, otherwise a writer that
// tees every line to stdout and the rotating file. The returned closer
// releases the file handle.
func Output(stdout io.Writer, cfg FileConfig) (io.Writer, io.Closer) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return stdout, nopCloser{}
	}
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return io.MultiWriter(stdout, file), file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
