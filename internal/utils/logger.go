package utils

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LoggerInitializationFailedMessageFormat reports a logger construction failure.
	LoggerInitializationFailedMessageFormat = "unable to initialize logger: %w"
	// ApplicationExecutionFailedMessage prefixes fatal command errors.
	ApplicationExecutionFailedMessage = "press failed"

	// LogLevelDebug enables verbose diagnostic output.
	LogLevelDebug = "debug"
	// LogLevelInfo is the default logging level.
	LogLevelInfo = "info"
	// LogLevelWarn limits output to warnings and errors.
	LogLevelWarn = "warn"
	// LogLevelError limits output to errors.
	LogLevelError = "error"
)

// supportedLogLevelNames lists the accepted log level values.
var supportedLogLevelNames = []string{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}

// IsSupportedLogLevel reports whether the provided level name is recognized.
func IsSupportedLogLevel(levelName string) bool {
	return ContainsString(supportedLogLevelNames, levelName)
}

// NewApplicationLogger constructs a zap logger configured for human-readable
// console output at the requested level.
func NewApplicationLogger(levelName string) (*zap.Logger, error) {
	parsedLevel, parseError := zapcore.ParseLevel(levelName)
	if parseError != nil {
		return nil, fmt.Errorf("unrecognized log level '%s': %w", levelName, parseError)
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(parsedLevel)
	config.Encoding = "console"
	config.DisableCaller = true
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.TimeKey = ""
	config.EncoderConfig.NameKey = ""
	config.EncoderConfig.CallerKey = ""
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.StacktraceKey = ""
	return config.Build()
}
