package scheduler

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/amirphl/measurement-reporting/config"
)

// NewFileLogger returns a logger writing to stdout and a rotating file at path. The returned
// closer releases the file. When the file directory cannot be created, it falls back to
// log.Default() and logs the reason.
func NewFileLogger(prefix, path string, cfg config.LoggingConfig) (*log.Logger, io.Closer) {
	if path == "" {
		return log.Default(), nopCloser{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger := log.Default()
		logger.Printf("%sfailed to initialize file logger: %v", prefix, err)
		return logger, nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	mw := io.MultiWriter(os.Stdout, file)
	return log.New(mw, prefix, log.LstdFlags|log.Lmicroseconds|log.LUTC), file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// redisKey namespaces a reporting key under the configured cache prefix
func redisKey(prefix string, parts ...string) string {
	key := prefix + "reporting"
	for _, part := range parts {
		key = fmt.Sprintf("%s:%s", key, part)
	}
	return key
}
