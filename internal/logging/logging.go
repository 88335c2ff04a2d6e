package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a service-scoped structured logger. Every entry carries the
// service name and an action tag so log lines stay greppable across modes.
type Logger struct {
	entry *logrus.Entry
}

func New(service string) *Logger {
	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	base.SetOutput(os.Stdout)
	base.SetLevel(levelFromEnv())
	return &Logger{entry: base.WithField("service", service)}
}

func levelFromEnv() logrus.Level {
	lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func (l *Logger) with(action string, fields map[string]any) *logrus.Entry {
	e := l.entry.WithField("action", action)
	if fields != nil {
		e = e.WithFields(logrus.Fields(fields))
	}
	return e
}

func (l *Logger) Info(action string, fields map[string]any)  { l.with(action, fields).Info(action) }
func (l *Logger) Debug(action string, fields map[string]any) { l.with(action, fields).Debug(action) }
func (l *Logger) Warn(action string, fields map[string]any)  { l.with(action, fields).Warn(action) }

func (l *Logger) Error(action string, err error, fields map[string]any) {
	e := l.with(action, fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(action)
}
