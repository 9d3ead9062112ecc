package websocket

import (
	"go.uber.org/zap"
)

// Logger provides structured logging for socket events
type Logger struct {
	logger *zap.Logger
}

func NewLogger(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.L()
	}
	return &Logger{logger: base.With(zap.String("component", "websocket"))}
}

func (l *Logger) fields(event, sessionID, clientID string, extra []zap.Field) []zap.Field {
	all := make([]zap.Field, 0, len(extra)+3)
	all = append(all, zap.String("event", event), zap.String("client_id", clientID))
	if sessionID != "" {
		all = append(all, zap.String("session_id", sessionID))
	}
	return append(all, extra...)
}

func (l *Logger) Info(event, sessionID, clientID string, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, sessionID, clientID, fields)...)
}

func (l *Logger) Warn(event, sessionID, clientID string, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, sessionID, clientID, fields)...)
}

func (l *Logger) Error(event, sessionID, clientID string, err error, fields ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, sessionID, clientID, append(fields, zap.Error(err)))...)
}
