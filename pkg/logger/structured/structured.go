package structured

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StructuredLogger implements LoggerInstance on zap, writing one JSON
// object per line for log shippers.
type StructuredLogger struct {
	logger *zap.SugaredLogger
}

// StructuredLoggerParams contains configuration for creating a StructuredLogger.
type StructuredLoggerParams struct {
	Debug bool
	// Service is attached to every entry as "service".
	Service string
}

// NewStructuredLogger builds a production zap logger writing to stderr.
func NewStructuredLogger(params StructuredLoggerParams) (*StructuredLogger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if params.Debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, err
	}
	if params.Service != "" {
		logger = logger.With(zap.String("service", params.Service))
	}
	return &StructuredLogger{logger: logger.Sugar()}, nil
}

// NewStructuredLoggerWithCore wraps an existing zap core, mainly for tests.
func NewStructuredLoggerWithCore(core zapcore.Core) *StructuredLogger {
	return &StructuredLogger{logger: zap.New(core).Sugar()}
}

// Log writes a message at INFO level.
func (s *StructuredLogger) Log(message string, keyvals ...any) {
	s.logger.Infow(message, keyvals...)
}

// Info writes a message at INFO level.
func (s *StructuredLogger) Info(message string, keyvals ...any) {
	s.logger.Infow(message, keyvals...)
}

// Warn writes a message at WARN level.
func (s *StructuredLogger) Warn(message string, keyvals ...any) {
	s.logger.Warnw(message, keyvals...)
}

// Error writes a message at ERROR level.
func (s *StructuredLogger) Error(message string, keyvals ...any) {
	s.logger.Errorw(message, keyvals...)
}

// Debug writes a message at DEBUG level.
func (s *StructuredLogger) Debug(message string, keyvals ...any) {
	s.logger.Debugw(message, keyvals...)
}

// Fatal writes a message at FATAL level and terminates the program.
func (s *StructuredLogger) Fatal(message string, keyvals ...any) {
	s.logger.Fatalw(message, keyvals...)
}

func (s *StructuredLogger) Sync() error {
	return s.logger.Sync()
}
