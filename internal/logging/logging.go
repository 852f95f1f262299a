// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// New builds a logger from the configured level and format.
func New(level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

// Discard returns a logger that writes nothing. Useful in tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// AsynqLevel maps a log level name onto asynq's levels.
func AsynqLevel(level string) asynq.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return asynq.DebugLevel
	case "warn", "warning":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	case "fatal":
		return asynq.FatalLevel
	}
	return asynq.InfoLevel
}

// AsynqLogger adapts a logrus entry to asynq.Logger.
type AsynqLogger struct {
	Entry *logrus.Entry
}

func NewAsynqLogger(log *logrus.Logger) *AsynqLogger {
	return &AsynqLogger{Entry: log.WithField("component", "asynq")}
}

func (l *AsynqLogger) Debug(args ...interface{}) { l.Entry.Debug(args...) }
func (l *AsynqLogger) Info(args ...interface{})  { l.Entry.Info(args...) }
func (l *AsynqLogger) Warn(args ...interface{})  { l.Entry.Warn(args...) }
func (l *AsynqLogger) Error(args ...interface{}) { l.Entry.Error(args...) }
func (l *AsynqLogger) Fatal(args ...interface{}) { l.Entry.Fatal(args...) }
