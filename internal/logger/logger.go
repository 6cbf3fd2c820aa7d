// Package logger wires logrus as the application-wide logger.
// Output can go to the console, a file, or both; gin's default writers are
// redirected into the same logger so HTTP traces share the configured format.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger is the shared logrus instance.
var Logger *logrus.Logger

// Config holds logger settings.
type Config struct {
	// Level is one of debug, info, warn, error, fatal, panic.
	Level string `mapstructure:"level"`
	// Format is json or text.
	Format string `mapstructure:"format"`
	// Output is console, file, or both.
	Output string `mapstructure:"output"`
	// FilePath is the log file location for file/both output.
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfig returns the default logger settings.
func DefaultConfig() *Config {
	return &Config{
		Level:    "info",
		Format:   "text",
		Output:   "console",
		FilePath: "logs/docuvault.log",
	}
}

// Init initializes the logging system. A nil config uses DefaultConfig.
func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	Logger = logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
		Logger.Warnf("invalid log level %q, falling back to info", config.Level)
	}
	Logger.SetLevel(level)

	switch config.Format {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "text":
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		Logger.Warnf("invalid log format %q, falling back to text", config.Format)
	}

	if err := setupOutput(config); err != nil {
		return err
	}

	setupGinLogger()

	Logger.Info("logging system initialized")
	return nil
}

func setupOutput(config *Config) error {
	switch config.Output {
	case "console":
		Logger.SetOutput(os.Stdout)
	case "file":
		logFile, err := openLogFile(config.FilePath)
		if err != nil {
			return err
		}
		Logger.SetOutput(logFile)
	case "both":
		logFile, err := openLogFile(config.FilePath)
		if err != nil {
			return err
		}
		Logger.SetOutput(io.MultiWriter(os.Stdout, logFile))
	default:
		Logger.SetOutput(os.Stdout)
		Logger.Warnf("invalid log output %q, falling back to console", config.Output)
	}
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
}

// setupGinLogger routes gin's writers through the shared logger.
func setupGinLogger() {
	ginWriter := &GinLogWriter{logger: Logger}
	gin.DefaultWriter = ginWriter
	gin.DefaultErrorWriter = ginWriter
}

// GinLogWriter adapts the shared logger to io.Writer for gin.
type GinLogWriter struct {
	logger *logrus.Logger
}

// Write implements io.Writer.
func (w *GinLogWriter) Write(p []byte) (n int, err error) {
	w.logger.Info(string(p))
	return len(p), nil
}

// GetLogger returns the shared logger, initializing it on first use.
func GetLogger() *logrus.Logger {
	if Logger == nil {
		if err := Init(nil); err != nil {
			logrus.Error("logger initialization failed, using standard logger")
			return logrus.StandardLogger()
		}
	}
	return Logger
}

// Debug logs at debug level.
func Debug(args ...interface{}) {
	GetLogger().Debug(args...)
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

// Info logs at info level.
func Info(args ...interface{}) {
	GetLogger().Info(args...)
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

// Warn logs at warn level.
func Warn(args ...interface{}) {
	GetLogger().Warn(args...)
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

// Error logs at error level.
func Error(args ...interface{}) {
	GetLogger().Error(args...)
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// Fatal logs at fatal level and exits.
func Fatal(args ...interface{}) {
	GetLogger().Fatal(args...)
}

// Fatalf logs a formatted message at fatal level and exits.
func Fatalf(format string, args ...interface{}) {
	GetLogger().Fatalf(format, args...)
}

// WithField attaches one structured field to a log entry.
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields attaches structured fields to a log entry.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}
