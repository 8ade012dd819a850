// Package scheduler runs the background loops: post dispatch, engagement collection and weekly recommendations
package scheduler

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/amirphl/page-pilot/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns a logger writing to stdout and, when a file path is configured, to a rotating file
func NewLogger(prefix string, cfg config.LoggingConfig) *log.Logger {
	flags := log.LstdFlags | log.Lmicroseconds | log.LUTC
	if cfg.FilePath == "" {
		return log.New(os.Stdout, prefix, flags)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		l := log.New(os.Stdout, prefix, flags)
		l.Printf("logger: failed to create log directory, using stdout only: %v", err)
		return l
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	return log.New(io.MultiWriter(os.Stdout, rotating), prefix, flags)
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
