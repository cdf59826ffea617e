package client

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger 日志接口，args 为 key/value 交替
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// logrusLogger 基于 logrus 的 Logger 实现
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger 用 logrus 包装 Logger 接口，nil 时使用 logrus 标准日志器
func NewLogrusLogger(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// WithComponent 附加 component 字段
func WithComponent(l Logger, component string) Logger {
	if ll, ok := l.(*logrusLogger); ok {
		return &logrusLogger{entry: ll.entry.WithField("component", component)}
	}
	return l
}

func (l *logrusLogger) Debug(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Error(msg)
}

// toFields 把 key/value 交替参数转换为 logrus.Fields，落单的值记为 EXTRA
func toFields(args []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields["EXTRA"] = args[i]
			break
		}
		fields[fmt.Sprint(args[i])] = args[i+1]
	}
	return fields
}

// NopLogger 丢弃所有日志
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
