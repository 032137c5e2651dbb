package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	Logger *zap.Logger
}

var (
	ProductionMode  = "production"
	DevelopmentMode = "development"
)

func New(mode string) *Logger {
	var config zap.Config
	if mode == ProductionMode || mode == "release" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapLogger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: zapLogger}
}

// Nop returns a logger that discards everything. Used by tests and as the
// fallback when a component is built without a logger.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

type ctxKey string

var RequestIdKey ctxKey = "request_id"
var UserIdKey ctxKey = "user_id"
var ConnIdKey ctxKey = "conn_id"

func (l *Logger) withContext(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	if ctx != nil {
		if requestId, ok := ctx.Value(RequestIdKey).(string); ok {
			fields = append(fields, zap.String(string(RequestIdKey), requestId))
		}
		if userId, ok := ctx.Value(UserIdKey).(string); ok {
			fields = append(fields, zap.String(string(UserIdKey), userId))
		}
		if connId, ok := ctx.Value(ConnIdKey).(string); ok {
			fields = append(fields, zap.String(string(ConnIdKey), connId))
		}
	}
	return l.Logger.With(fields...)
}

// Ctx returns the underlying zap logger enriched with request scoped fields.
func (l *Logger) Ctx(ctx context.Context) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.withContext(ctx)
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{Logger: l.Logger.With(zap.String("component", component))}
}

var logger *Logger

func SetGlobalLogger(l *Logger) {
	logger = l
	if l != nil {
		zap.ReplaceGlobals(l.Logger)
	}
}

func GetGlobalLogger() *Logger {
	return logger
}

func (l *Logger) Debugf(template string, args ...interface{}) {
	l.Logger.Sugar().Debugf(template, args...)
}

func (l *Logger) Infof(template string, args ...interface{}) {
	l.Logger.Sugar().Infof(template, args...)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.Logger.Sugar().Warnf(template, args...)
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.Logger.Sugar().Errorf(template, args...)
}

func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}
