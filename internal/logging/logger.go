// Package logging provides config-driven categorized file-based logging for runview.
// Logs are written to the configured logs directory with separate files per category.
// Logging is controlled by logging.debug_mode - when false, no logs are written, which
// keeps the terminal form's screen free of diagnostics.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"runview/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot  Category = "boot"  // Startup, config resolution
	CategoryAPI   Category = "api"   // Outbound /run calls
	CategoryUI    Category = "ui"    // Terminal form events
	CategoryWeb   Category = "web"   // Browser form requests
	CategoryWatch Category = "watch" // File watcher re-runs
)

// Logger wraps a zap logger bound to one category and its file.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	cfg       config.LoggingConfig
	cfgMu     sync.RWMutex
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Initialize sets up the logging directory from the logging config.
// dir defaults to <config dir>/logs. Safe to call again; open files are closed.
func Initialize(dir string, c config.LoggingConfig) error {
	CloseAll()

	if c.Dir != "" {
		dir = c.Dir
	}
	if dir == "" {
		dir = filepath.Join(config.DefaultConfigDir(), "logs")
	}

	lvl, err := config.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	if err := level.UnmarshalText([]byte(lvl)); err != nil {
		return fmt.Errorf("failed to set log level: %w", err)
	}

	cfgMu.Lock()
	cfg = c
	logsDir = dir
	cfgMu.Unlock()

	if !c.DebugMode {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== runview logging initialized ===")
	boot.Info("Logs directory: %s", dir)
	boot.Info("Log level: %s", lvl)

	if err := InitAudit(); err != nil {
		BootWarn("audit log unavailable: %v", err)
	}
	return nil
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg.IsCategoryEnabled(string(category))
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	if !IsCategoryEnabled(category) {
		return nop(category)
	}

	cfgMu.RLock()
	dir, jsonFormat := logsDir, cfg.JSONFormat
	cfgMu.RUnlock()
	if dir == "" {
		return nop(category)
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix keeps rotation trivial
	filename := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), category)
	logPath := filepath.Join(dir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return nop(category)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if jsonFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(file), level)
	l := &Logger{
		category: category,
		file:     file,
		sugar:    zap.New(core).Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

func nop(category Category) *Logger {
	return &Logger{category: category, sugar: zap.NewNop().Sugar()}
}

// Replace installs zl as the logger for category until restore is called.
// Intended for tests that assert on emitted diagnostics.
func Replace(category Category, zl *zap.Logger) (restore func()) {
	loggersMu.Lock()
	prev, had := loggers[category]
	loggers[category] = &Logger{category: category, sugar: zl.Sugar()}
	loggersMu.Unlock()

	return func() {
		loggersMu.Lock()
		defer loggersMu.Unlock()
		if had {
			loggers[category] = prev
		} else {
			delete(loggers, category)
		}
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a child logger carrying structured key-value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...), file: l.file}
}

// CloseAll flushes and closes every open category file and the audit log.
func CloseAll() {
	CloseAudit()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	for cat, l := range loggers {
		_ = l.sugar.Sync()
		if l.file != nil {
			_ = l.file.Close()
		}
		delete(loggers, cat)
	}
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warn(format, args...)
}

func API(format string, args ...interface{}) {
	Get(CategoryAPI).Info(format, args...)
}

func APIDebug(format string, args ...interface{}) {
	Get(CategoryAPI).Debug(format, args...)
}

func APIError(format string, args ...interface{}) {
	Get(CategoryAPI).Error(format, args...)
}

func UI(format string, args ...interface{}) {
	Get(CategoryUI).Info(format, args...)
}

func UIDebug(format string, args ...interface{}) {
	Get(CategoryUI).Debug(format, args...)
}

func Web(format string, args ...interface{}) {
	Get(CategoryWeb).Info(format, args...)
}

func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Info(format, args...)
}

func WatchError(format string, args ...interface{}) {
	Get(CategoryWatch).Error(format, args...)
}
