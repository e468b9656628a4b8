package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	logx "github.com/ragkb-chat/core/pkg/logger"
)

// loggerAdapter routes watermill logs to logx.
type loggerAdapter struct {
	fields watermill.LogFields
}

func (l loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.emit(logx.Error().Err(err), msg, fields)
}

func (l loggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.emit(logx.Debug(), msg, fields)
}

func (l loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.emit(logx.Debug(), msg, fields)
}

// Trace is dropped; watermill traces every message.
func (l loggerAdapter) Trace(string, watermill.LogFields) {}

func (l loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return loggerAdapter{fields: l.fields.Add(fields)}
}

func (l loggerAdapter) emit(e *zerolog.Event, msg string, fields watermill.LogFields) {
	e.Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}
