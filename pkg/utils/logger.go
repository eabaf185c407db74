package utils

import (
	"log"
	"os"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

type Logger struct {
	level  LogLevel
	name   string
	logger *log.Logger
}

func NewLogger(levelStr string) *Logger {
	var level LogLevel
	switch levelStr {
	case "debug":
		level = DEBUG
	case "info":
		level = INFO
	case "warn":
		level = WARN
	case "error":
		level = ERROR
	default:
		level = INFO
	}

	return &Logger{
		level:  level,
		logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// Named возвращает логгер с префиксом компонента
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		level:  l.level,
		name:   name,
		logger: l.logger,
	}
}

func (l *Logger) prefix(levelTag string) string {
	if l.name != "" {
		return levelTag + " [" + l.name + "] "
	}
	return levelTag + " "
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level <= DEBUG {
		l.logger.Printf(l.prefix("[DEBUG]")+format, v...)
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	if l.level <= INFO {
		l.logger.Printf(l.prefix("[INFO]")+format, v...)
	}
}

func (l *Logger) Warn(format string, v ...interface{}) {
	if l.level <= WARN {
		l.logger.Printf(l.prefix("[WARN]")+format, v...)
	}
}

func (l *Logger) Error(format string, v ...interface{}) {
	if l.level <= ERROR {
		l.logger.Printf(l.prefix("[ERROR]")+format, v...)
	}
}
