// Package s3log provides structured logging for multipart engine
// operations: one log line per call, with its arguments, duration, and
// outcome, adapted from the project's logging wrapper for outbound S3 API
// calls.
package s3log

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Logger wraps a *slog.Logger with the attribute shape the multipart
// engine logs its operations under.
type Logger struct {
	logger *slog.Logger
}

// New wraps logger. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// LogOperation records one engine operation call. Successful calls are
// logged at Debug; failures at Error with the error's message attached,
// plus its wrapped cause (e.g. an s3err InternalError's Cause) when it has
// one.
// extra are additional structured attributes specific to the operation,
// e.g. upload id or part count.
func (l *Logger) LogOperation(operation string, extra []any, err error, duration time.Duration) {
	attrs := make([]any, 0, len(extra)+6)
	attrs = append(attrs, "operation", operation, "duration_ms", duration.Milliseconds())
	attrs = append(attrs, extra...)

	if err != nil {
		attrs = append(attrs, "error", err.Error())
		if cause := errors.Unwrap(err); cause != nil {
			attrs = append(attrs, "cause", cause.Error())
		}
		l.logger.Error("multipart engine operation failed", attrs...)
		return
	}
	l.logger.Debug("multipart engine operation", attrs...)
}

// JSONAttr renders v as a JSON string for inclusion in a log attribute,
// e.g. the completed-part list passed to Complete. Marshal failures are
// embedded in the returned string rather than propagated, since logging
// must never fail the call it is describing.
func JSONAttr(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("{\"error\":\"failed to marshal: %v\"}", err)
	}
	return string(data)
}
