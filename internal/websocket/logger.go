package websocket

import (
	"chat-relay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebSocketLogger provides structured logging for connection lifecycle events
type WebSocketLogger struct {
	logger *zap.Logger
}

func NewWebSocketLogger(l *logger.Logger) *WebSocketLogger {
	if l == nil {
		l = logger.Nop()
	}
	return &WebSocketLogger{logger: l.Logger.With(zap.String("component", "websocket"))}
}

func (l *WebSocketLogger) fields(event string, userID uuid.UUID, clientID string, extra []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID),
	}, extra...)
}

func (l *WebSocketLogger) Debug(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	l.logger.Debug("websocket_event", l.fields(event, userID, clientID, fields)...)
}

func (l *WebSocketLogger) Info(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, userID, clientID, fields)...)
}

func (l *WebSocketLogger) Warn(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, userID, clientID, fields)...)
}

func (l *WebSocketLogger) Error(event string, userID uuid.UUID, clientID string, err error, fields ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, userID, clientID, append(fields, zap.Error(err)))...)
}
