package whatsapp

import (
	"github.com/sirupsen/logrus"
	waLog "go.mau.fi/whatsmeow/util/log"
)

type logrusLogger struct {
	module string
	entry  *logrus.Entry
}

// NewLogger routes whatsmeow logs into logrus, tagged with the module name.
func NewLogger(logger logrus.FieldLogger, module string) waLog.Logger {
	return &logrusLogger{module: module, entry: logger.WithField("module", module)}
}

func (l *logrusLogger) Errorf(msg string, args ...interface{}) { l.entry.Errorf(msg, args...) }
func (l *logrusLogger) Warnf(msg string, args ...interface{})  { l.entry.Warnf(msg, args...) }
func (l *logrusLogger) Infof(msg string, args ...interface{})  { l.entry.Infof(msg, args...) }
func (l *logrusLogger) Debugf(msg string, args ...interface{}) { l.entry.Debugf(msg, args...) }

func (l *logrusLogger) Sub(module string) waLog.Logger {
	name := l.module + "/" + module
	return &logrusLogger{module: name, entry: l.entry.WithField("module", name)}
}
