package logging

import (
	"io"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

// logrusLogger adapts a *logrus.Logger to the Logger interface.
type logrusLogger struct {
	l *logrus.Logger
}

// NewLogrus wraps an existing *logrus.Logger. A nil logger gets logrus's
// own defaults (text formatter, Info level, stderr).
func NewLogrus(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.New()
	}
	return logrusLogger{l: l}
}

// NewRotatingLogrus builds a logrus-backed Logger that writes to dir,
// rotating daily and keeping maxAge worth of history.
func NewRotatingLogrus(dir string, maxAge time.Duration) (Logger, error) {
	writer, err := rotatelogs.New(
		dir+"/spdnet.%Y%m%d.log",
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(io.MultiWriter(writer))
	return logrusLogger{l: l}, nil
}

func (g logrusLogger) Debugf(format string, args ...any) { g.l.Debugf(format, args...) }
func (g logrusLogger) Infof(format string, args ...any)  { g.l.Infof(format, args...) }
func (g logrusLogger) Warnf(format string, args ...any)  { g.l.Warnf(format, args...) }
func (g logrusLogger) Errorf(format string, args ...any) { g.l.Errorf(format, args...) }
