// Package logger wraps zap behind a small key/value interface shared by
// the HTTP layer and the background workers.
package logger

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Sync() error
	With(keysAndValues ...any) Logger
}

type zapLogger struct {
	logger *zap.SugaredLogger
}

// New builds a logger for the given level (debug, info, warn, error)
// and format ("json" for production output, anything else for the
// colored console encoder).
func New(level, format string) Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return &zapLogger{logger: l.Sugar()}
}

// Nop returns a logger that discards everything.  Used by tests.
func Nop() Logger {
	return &zapLogger{logger: zap.NewNop().Sugar()}
}

// FromZap adapts an existing zap logger, e.g. one built by zaptest or
// an observer core.
func FromZap(l *zap.Logger) Logger {
	return &zapLogger{logger: l.Sugar()}
}

func (l *zapLogger) Debug(msg string, keysAndValues ...any) { l.logger.Debugw(msg, keysAndValues...) }
func (l *zapLogger) Info(msg string, keysAndValues ...any)  { l.logger.Infow(msg, keysAndValues...) }
func (l *zapLogger) Warn(msg string, keysAndValues ...any)  { l.logger.Warnw(msg, keysAndValues...) }
func (l *zapLogger) Error(msg string, keysAndValues ...any) { l.logger.Errorw(msg, keysAndValues...) }
func (l *zapLogger) Sync() error                            { return l.logger.Sync() }

func (l *zapLogger) With(keysAndValues ...any) Logger {
	return &zapLogger{logger: l.logger.With(keysAndValues...)}
}

// EchoMiddleware logs one line per HTTP request.  Only the route
// pattern is logged, never the raw URI or query string.
func EchoMiddleware(log Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			log.Info("http request",
				"method", req.Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", c.RealIP(),
			)
			return nil
		}
	}
}
