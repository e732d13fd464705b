package logger

import (
	"encoding/json"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileLogger implements Tier 2: rotating file logs via lumberjack.
// Entries are written as JSON lines regardless of the console format.
type FileLogger struct {
	config *Config
	writer *lumberjack.Logger
	mu     sync.Mutex
}

// fileEntry is the JSON shape of a single file log line
type fileEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Message   string                 `json:"message"`
	Component Component              `json:"component,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// NewFileLogger creates a new rotating file logger
func NewFileLogger(config *Config) *FileLogger {
	return &FileLogger{
		config: config,
		writer: &lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    config.File.MaxSizeMB,
			MaxBackups: config.File.MaxBackups,
			MaxAge:     config.File.MaxAgeDays,
			Compress:   config.File.Compress,
		},
	}
}

// log writes a log entry to the file
func (fl *FileLogger) log(level LogLevel, msg string, component Component, fields map[string]interface{}) {
	entry := fileEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     level,
		Message:   msg,
		Component: component,
		Fields:    fields,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	fl.mu.Lock()
	defer fl.mu.Unlock()
	// File logging is best-effort
	_, _ = fl.writer.Write(data)
}

// Close closes the underlying file
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.writer.Close()
}
