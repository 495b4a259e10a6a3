package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// NewTestLogger creates a logger for testing
func NewTestLogger() *Logger {
	// Use a no-op logger for tests to avoid output
	return &Logger{zap.NewNop()}
}

// NewTestLoggerWithT creates a test logger that writes to testing.T
func NewTestLoggerWithT(t *testing.T) *Logger {
	return &Logger{zaptest.NewLogger(t)}
}
