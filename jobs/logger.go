package jobs

import (
	"fmt"
	"log/slog"
)

// asynqLogger adapts slog to asynq's logger interface.
type asynqLogger struct {
	l *slog.Logger
}

func newAsynqLogger(l *slog.Logger) *asynqLogger {
	if l == nil {
		l = slog.Default()
	}
	return &asynqLogger{l: l.With(slog.String("component", "asynq"))}
}

func (a *asynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a *asynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a *asynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a *asynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
func (a *asynqLogger) Fatal(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
