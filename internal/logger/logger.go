// Package logger provides a thread-safe in-memory feed of user-facing
// messages: notices, warnings and classified errors. Every message has an
// ID so it can be dismissed from the UI.
package logger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message represents a single log message
type Message struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Level     string    `json:"level"` // info, warning, error
}

// Logger manages in-memory log messages
type Logger struct {
	mu       sync.RWMutex
	messages []Message
	maxSize  int
	version  uint64
}

// New creates a new logger with specified max message count
func New(maxSize int) *Logger {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Logger{
		messages: make([]Message, 0, maxSize),
		maxSize:  maxSize,
	}
}

// Log adds a new message to the logger and returns its ID.
func (l *Logger) Log(level, text string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Text:      text,
		Level:     level,
	}

	l.messages = append(l.messages, msg)

	// Keep only the last maxSize messages
	if len(l.messages) > l.maxSize {
		l.messages = l.messages[len(l.messages)-l.maxSize:]
	}
	l.version++
	return msg.ID
}

// Info logs an info-level message
func (l *Logger) Info(text string) string {
	return l.Log("info", text)
}

// Warning logs a warning-level message
func (l *Logger) Warning(text string) string {
	return l.Log("warning", text)
}

// Error logs an error-level message
func (l *Logger) Error(text string) string {
	return l.Log("error", text)
}

// Dismiss removes the message with the given ID. It reports whether a
// message was removed.
func (l *Logger) Dismiss(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, m := range l.messages {
		if m.ID == id {
			l.messages = append(l.messages[:i], l.messages[i+1:]...)
			l.version++
			return true
		}
	}
	return false
}

// Version increases on every change. Streamers compare it to skip
// unchanged sends.
func (l *Logger) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// GetRecent returns the most recent n messages (newest first)
func (l *Logger) GetRecent(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.messages) {
		n = len(l.messages)
	}

	// Return in reverse order (newest first)
	result := make([]Message, n)
	for i := 0; i < n; i++ {
		result[i] = l.messages[len(l.messages)-1-i]
	}

	return result
}

// GetAll returns all messages (newest first)
func (l *Logger) GetAll() []Message {
	return l.GetRecent(l.maxSize)
}
