package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger configures the process-wide logrus logger from environment
// variables: LOG_LEVEL (default "info"), LOG_FORMAT ("json" or "text"),
// LOG_FILE (optional rolling file in addition to stdout).
func InitLogger() {
	level, err := logrus.ParseLevel(GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if GetEnv("LOG_FORMAT", "text") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	writers := []io.Writer{os.Stdout}
	if file := GetEnv("LOG_FILE", ""); file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			logrus.WithError(err).Warn("failed to create log directory")
		} else {
			writers = append(writers, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    GetEnvInt("LOG_MAX_SIZE_MB", 50),
				MaxAge:     GetEnvInt("LOG_MAX_AGE_DAYS", 14),
				MaxBackups: GetEnvInt("LOG_MAX_BACKUPS", 5),
				Compress:   true,
			})
		}
	}
	logrus.SetOutput(io.MultiWriter(writers...))
}
