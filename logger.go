// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package eole

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel is the severity of a log line.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelNone // disables logging
)

var levelNames = map[LogLevel]string{
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
	LevelNone:    "NONE",
}

func (l LogLevel) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel parses "debug", "INFO", "warn", ... into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	if up == "WARN" {
		return LevelWarning, nil
	}
	for level, name := range levelNames {
		if name == up {
			return level, nil
		}
	}
	names := make([]string, 0, len(levelNames))
	for _, name := range levelNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return LevelInfo, fmt.Errorf("invalid log level: %s. Available levels: %v", s, names)
}

// SimpleLogger is an io.Writer that stamps and filters log lines. The level
// of a line is taken from its "DEBUG:" / "[ERROR]" style prefix.
type SimpleLogger struct {
	mu         sync.Mutex
	level      LogLevel
	output     io.Writer
	timeFormat string
	prefix     string
}

// NewSimpleLogger creates a logger writing to output, os.Stderr if nil.
func NewSimpleLogger(output io.Writer, level LogLevel, prefix string) *SimpleLogger {
	if output == nil {
		output = os.Stderr
	}
	return &SimpleLogger{
		level:      level,
		output:     output,
		timeFormat: time.RFC3339,
		prefix:     prefix,
	}
}

// SetLevel sets the minimum level written.
func (l *SimpleLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the minimum level written.
func (l *SimpleLogger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Write implements io.Writer.
func (l *SimpleLogger) Write(p []byte) (int, error) {
	message := strings.TrimSpace(string(p))
	level, message := splitLevel(message)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level == LevelNone || level < l.level {
		return len(p), nil
	}
	line := fmt.Sprintf("%s [%s] <%s> %s\n", time.Now().Format(l.timeFormat), level, l.prefix, message)
	if _, err := io.WriteString(l.output, line); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the output unless it is stdout or stderr.
func (l *SimpleLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.output == os.Stdout || l.output == os.Stderr {
		return nil
	}
	if c, ok := l.output.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var levelPrefixes = []struct {
	prefix string
	level  LogLevel
}{
	{"[DEBUG]", LevelDebug}, {"DEBUG:", LevelDebug},
	{"[INFO]", LevelInfo}, {"INFO:", LevelInfo},
	{"[WARNING]", LevelWarning}, {"WARNING:", LevelWarning}, {"WARN:", LevelWarning},
	{"[ERROR]", LevelError}, {"ERROR:", LevelError},
}

// splitLevel strips a level prefix from message. Lines without one are INFO.
func splitLevel(message string) (LogLevel, string) {
	upper := strings.ToUpper(message)
	for _, p := range levelPrefixes {
		if strings.HasPrefix(upper, p.prefix) {
			return p.level, strings.TrimSpace(message[len(p.prefix):])
		}
	}
	return LevelInfo, message
}
