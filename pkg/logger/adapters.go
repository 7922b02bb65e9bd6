package logger

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// WatermillAdapter routes watermill logs into zap.
type WatermillAdapter struct {
	l *zap.Logger
}

// NewWatermillAdapter wraps a zap logger for watermill publishers, subscribers and routers.
func NewWatermillAdapter(l *zap.Logger) watermill.LoggerAdapter {
	if l == nil {
		l = zap.NewNop()
	}
	return &WatermillAdapter{l: l.Named("events")}
}

func (a *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.l.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (a *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.l.Info(msg, zapFields(fields)...)
}

func (a *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.l.Debug(msg, zapFields(fields)...)
}

// Trace maps to debug; zap has no finer level.
func (a *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.l.Debug(msg, zapFields(fields)...)
}

func (a *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{l: a.l.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// CronAdapter satisfies cron.Logger.
type CronAdapter struct {
	s *zap.SugaredLogger
}

// NewCronAdapter wraps a zap logger for robfig/cron.
func NewCronAdapter(l *zap.Logger) cron.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &CronAdapter{s: l.Named("cron").Sugar()}
}

func (a *CronAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.s.Debugw(msg, keysAndValues...)
}

func (a *CronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
