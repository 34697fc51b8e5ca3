// Package poollog provides the structured logger that the execpool-demo
// command builds and hands to the executor and its config reload loop. The core
// executor package only depends on the small Debugf/Infof/Warnf interface
// it declares itself, so it never imports this package directly — wiring
// happens at the call site via executor.WithLogger.
package poollog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level orders log severities from most to least verbose.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a case-insensitive level name, defaulting to InfoLevel
// with an error if name is unrecognized.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("poollog: invalid level %q", name)
	}
}

// Format selects how entries are rendered to Output.
type Format int

const (
	TextFormat Format = iota
	JSONFormat
)

// entry is a single log record.
type entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger is a leveled, optionally-JSON, optionally field-sanitizing
// writer. It satisfies the executor.Logger interface (Debugf/Infof/Warnf).
type Logger struct {
	mu         sync.RWMutex
	level      Level
	format     Format
	output     io.Writer
	component  string
	sanitize   bool
}

// Config configures a Logger. A zero Config is not valid; use DefaultConfig.
type Config struct {
	Level     Level
	Format    Format
	Output    io.Writer
	Component string
	Sanitize  bool
}

// DefaultConfig returns the config New uses when passed nil: info level,
// text output to stdout, sanitizing on.
func DefaultConfig() *Config {
	return &Config{
		Level:    InfoLevel,
		Format:   TextFormat,
		Output:   os.Stdout,
		Sanitize: true,
	}
}

// secretPattern flags field names and arg values that look like credentials
// so they never reach Output verbatim, even in a debug trace of pool
// reconfiguration that happens to echo a config value.
var secretPattern = regexp.MustCompile(`(?i)(password|secret|token|api[-_]?key|auth|credential)`)

// New constructs a Logger from cfg, falling back to DefaultConfig on nil.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Logger{
		level:     cfg.Level,
		format:    cfg.Format,
		output:    cfg.Output,
		component: cfg.Component,
		sanitize:  cfg.Sanitize,
	}
}

// WithComponent returns a Logger that tags every entry with component,
// sharing the parent's level, format, and output.
func (l *Logger) WithComponent(component string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		level:     l.level,
		format:    l.format,
		output:    l.output,
		component: component,
		sanitize:  l.sanitize,
	}
}

// SetLevel changes the minimum level written from here on.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *Logger) write(level Level, message string, fields map[string]interface{}) {
	if !l.enabled(level) {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	e := entry{Timestamp: time.Now(), Level: level.String(), Message: message, Fields: fields}
	if l.component != "" {
		if e.Fields == nil {
			e.Fields = make(map[string]interface{})
		}
		e.Fields["component"] = l.component
	}
	if l.sanitize {
		sanitizeFields(e.Fields)
	}

	var out string
	switch l.format {
	case JSONFormat:
		data, _ := json.Marshal(e)
		out = string(data) + "\n"
	default:
		out = formatText(e)
	}
	l.output.Write([]byte(out))
}

func formatText(e entry) string {
	ts := e.Timestamp.Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("%s [%s] %s", ts, e.Level, e.Message)
	if len(e.Fields) > 0 {
		var parts []string
		for k, v := range e.Fields {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		line += " [" + strings.Join(parts, " ") + "]"
	}
	return line + "\n"
}

func sanitizeFields(fields map[string]interface{}) {
	for k := range fields {
		if secretPattern.MatchString(k) {
			fields[k] = "[REDACTED]"
		}
	}
}

func (l *Logger) sanitizeArgs(args []interface{}) []interface{} {
	l.mu.RLock()
	on := l.sanitize
	l.mu.RUnlock()
	if !on {
		return args
	}
	out := make([]interface{}, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok && secretPattern.MatchString(s) {
			out[i] = "[REDACTED]"
			continue
		}
		out[i] = a
	}
	return out
}

func (l *Logger) Debug(message string) { l.write(DebugLevel, message, nil) }
func (l *Logger) Info(message string)  { l.write(InfoLevel, message, nil) }
func (l *Logger) Warn(message string)  { l.write(WarnLevel, message, nil) }
func (l *Logger) Error(message string) { l.write(ErrorLevel, message, nil) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.write(DebugLevel, fmt.Sprintf(format, l.sanitizeArgs(args)...), nil)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.write(InfoLevel, fmt.Sprintf(format, l.sanitizeArgs(args)...), nil)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.write(WarnLevel, fmt.Sprintf(format, l.sanitizeArgs(args)...), nil)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.write(ErrorLevel, fmt.Sprintf(format, l.sanitizeArgs(args)...), nil)
}

// WithFields returns a FieldLogger that attaches fields to every entry.
func (l *Logger) WithFields(fields map[string]interface{}) *FieldLogger {
	f := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		f[k] = v
	}
	return &FieldLogger{logger: l, fields: f}
}

// FieldLogger is a Logger bound to a fixed set of structured fields.
type FieldLogger struct {
	logger *Logger
	fields map[string]interface{}
}

func (fl *FieldLogger) Debug(message string) { fl.logger.write(DebugLevel, message, fl.fields) }
func (fl *FieldLogger) Info(message string)  { fl.logger.write(InfoLevel, message, fl.fields) }
func (fl *FieldLogger) Warn(message string)  { fl.logger.write(WarnLevel, message, fl.fields) }
func (fl *FieldLogger) Error(message string) { fl.logger.write(ErrorLevel, message, fl.fields) }
