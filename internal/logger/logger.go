package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogLevel defines log level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name to a LogLevel.
// An empty string means INFO.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", s)
	}
}

const defaultFilePrefix = "exatool"

// Logger is a leveled logger writing one file per day.
type Logger struct {
	mu          sync.Mutex
	level       LogLevel
	logDir      string
	prefix      string
	maxDays     int
	currentFile *os.File
	currentDate string
	console     io.Writer // nil disables the console echo
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Config logger configuration
type Config struct {
	LogDir     string   // Log directory
	Level      LogLevel // Log level
	MaxDays    int      // Max days to keep logs
	ConsoleOut bool     // Echo to stderr as well
	FilePrefix string   // Log file name prefix, "exatool" if empty
}

// Init initializes the default logger
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		defaultLogger, err = NewLogger(cfg)
	})
	return err
}

// NewLogger creates a new logger instance
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 7
	}
	if strings.TrimSpace(cfg.FilePrefix) == "" {
		cfg.FilePrefix = defaultFilePrefix
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		level:   cfg.Level,
		logDir:  cfg.LogDir,
		prefix:  cfg.FilePrefix,
		maxDays: cfg.MaxDays,
	}
	// stdout may carry a protocol stream (MCP), so the echo goes to stderr.
	if cfg.ConsoleOut {
		l.console = os.Stderr
	}

	if err := l.rotateIfNeeded(); err != nil {
		return nil, err
	}

	return l, nil
}

// rotateIfNeeded checks if log rotation is needed and performs it
func (l *Logger) rotateIfNeeded() error {
	today := time.Now().Format("2006-01-02")
	if l.currentDate == today && l.currentFile != nil {
		return nil
	}

	if l.currentFile != nil {
		l.currentFile.Close()
	}

	filename := filepath.Join(l.logDir, fmt.Sprintf("%s-%s.log", l.prefix, today))
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.currentFile = f
	l.currentDate = today

	go l.cleanOldLogs()

	return nil
}

// cleanOldLogs removes log files older than maxDays
func (l *Logger) cleanOldLogs() {
	files, err := filepath.Glob(filepath.Join(l.logDir, l.prefix+"-*.log"))
	if err != nil {
		return
	}

	if len(files) <= l.maxDays {
		return
	}

	// Names sort by date.
	sort.Strings(files)

	for i := 0; i < len(files)-l.maxDays; i++ {
		os.Remove(files[i])
	}
}

// log writes a log message
func (l *Logger) log(level LogLevel, fields, format string, args ...interface{}) {
	if l == nil || level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "Logger rotation error: %v\n", err)
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	if fields != "" {
		message = fields + " " + message
	}
	logLine := fmt.Sprintf("[%s] [%s] %s\n", timestamp, level.String(), message)

	if l.currentFile != nil {
		l.currentFile.WriteString(logLine)
	}
	if l.console != nil {
		io.WriteString(l.console, logLine)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, "", format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, "", format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, "", format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, "", format, args...)
}

// With returns an Entry that prefixes every message with the given
// key/value pairs.
func (l *Logger) With(kv ...any) *Entry {
	return &Entry{logger: l, fields: formatFields(kv)}
}

// Close closes the logger
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.currentFile != nil {
		err := l.currentFile.Close()
		l.currentFile = nil
		return err
	}
	return nil
}

// GetWriter returns an io.Writer for the logger at the specified level
func (l *Logger) GetWriter(level LogLevel) io.Writer {
	return &logWriter{logger: l, level: level}
}

// logWriter implements io.Writer interface
type logWriter struct {
	logger *Logger
	level  LogLevel
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.logger.log(w.level, "", "%s", msg)
	}
	return len(p), nil
}

// Entry is a logger bound to a set of key/value fields. An Entry created
// from a nil Logger writes to the default logger, if one is initialized.
type Entry struct {
	logger *Logger
	fields string
}

// With returns a copy of e with more fields appended.
func (e *Entry) With(kv ...any) *Entry {
	extra := formatFields(kv)
	if e.fields != "" && extra != "" {
		extra = e.fields + " " + extra
	} else if extra == "" {
		extra = e.fields
	}
	return &Entry{logger: e.logger, fields: extra}
}

func (e *Entry) target() *Logger {
	if e.logger != nil {
		return e.logger
	}
	return defaultLogger
}

// Debug logs a debug message with the entry's fields
func (e *Entry) Debug(format string, args ...interface{}) {
	e.target().log(DEBUG, e.fields, format, args...)
}

// Info logs an info message with the entry's fields
func (e *Entry) Info(format string, args ...interface{}) {
	e.target().log(INFO, e.fields, format, args...)
}

// Warn logs a warning message with the entry's fields
func (e *Entry) Warn(format string, args ...interface{}) {
	e.target().log(WARN, e.fields, format, args...)
}

// Error logs an error message with the entry's fields
func (e *Entry) Error(format string, args ...interface{}) {
	e.target().log(ERROR, e.fields, format, args...)
}

// formatFields renders key/value pairs as "k=v k2=v2". Values containing
// spaces or quotes are quoted. A trailing key without a value is kept as
// "k=?".
func formatFields(kv []any) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(fmt.Sprint(kv[i]))
		b.WriteByte('=')
		if i+1 >= len(kv) {
			b.WriteByte('?')
			break
		}
		v := fmt.Sprint(kv[i+1])
		if v == "" || strings.ContainsAny(v, " \t\n\"=") {
			v = strconv.Quote(v)
		}
		b.WriteString(v)
	}
	return b.String()
}

// Package-level functions using the default logger

// With returns an Entry bound to the default logger.
func With(kv ...any) *Entry {
	return &Entry{fields: formatFields(kv)}
}

// Debug logs a debug message using the default logger
func Debug(format string, args ...interface{}) {
	defaultLogger.Debug(format, args...)
}

// Info logs an info message using the default logger
func Info(format string, args ...interface{}) {
	defaultLogger.Info(format, args...)
}

// Warn logs a warning message using the default logger
func Warn(format string, args ...interface{}) {
	defaultLogger.Warn(format, args...)
}

// Error logs an error message using the default logger
func Error(format string, args ...interface{}) {
	defaultLogger.Error(format, args...)
}

// Close closes the default logger
func Close() error {
	return defaultLogger.Close()
}

// GetDefault returns the default logger
func GetDefault() *Logger {
	return defaultLogger
}
