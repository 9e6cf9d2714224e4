package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileConfig controls the rotating log file written next to stderr.
type LogFileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// setupLogging sets the logrus level and, when a file path is given, tees
// log output into a rotating file. The returned closer flushes the file.
func setupLogging(level string, file LogFileConfig) (io.Closer, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %s", level)
	}
	logrus.SetLevel(lvl)

	if file.Path == "" {
		logrus.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}
	rotating := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
		Compress:   false,
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, rotating))
	return rotating, nil
}
