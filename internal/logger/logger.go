// Package logger держит общий logrus-логгер сервиса.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger(logrus.InfoLevel)

func newLogger(level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	return l
}

// Init пересоздаёт логгер; неизвестный уровень превращается в info
func Init(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log = newLogger(lvl)
}

// SetJSON переключает формат вывода на JSON
func SetJSON() {
	log.SetFormatter(&logrus.JSONFormatter{})
}

// Logger отдаёт текущий логгер для адаптеров, которым нужен *logrus.Logger
func Logger() *logrus.Logger { return log }

func WithFields(fields logrus.Fields) *logrus.Entry { return log.WithFields(fields) }

func WithError(err error) *logrus.Entry { return log.WithError(err) }

func Debug(args ...interface{}) { log.Debug(args...) }
func Info(args ...interface{})  { log.Info(args...) }
func Warn(args ...interface{})  { log.Warn(args...) }
func Error(args ...interface{}) { log.Error(args...) }
func Fatal(args ...interface{}) { log.Fatal(args...) }

func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { log.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { log.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { log.Fatalf(format, args...) }
