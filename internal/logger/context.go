package logger

import (
	"context"
	"sync"
)

type contextKey struct{}

var loggerKey = contextKey{}

var (
	defaultLogger   = New(nil)
	defaultLoggerMu sync.RWMutex
)

// Default returns the process-wide logger used when ctx carries none.
func Default() *Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the process-wide logger. nil is ignored.
func SetDefaultLogger(l *Logger) {
	if l == nil {
		return
	}
	defaultLoggerMu.Lock()
	defaultLogger = l
	defaultLoggerMu.Unlock()
}

// FromContext returns the logger attached to ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok {
			return l
		}
	}
	return Default()
}

// WithFields returns a context whose logger carries fields in addition to
// whatever ctx already carried.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return context.WithValue(ctx, loggerKey, FromContext(ctx).WithFields(fields))
}

// SetRequestID tags ctx with the HTTP request id.
func SetRequestID(ctx context.Context, id string) context.Context {
	return WithFields(ctx, Fields{FieldRequestID: id})
}

// SetJobID tags ctx with a job id.
func SetJobID(ctx context.Context, id uint) context.Context {
	return WithFields(ctx, Fields{FieldJobID: id})
}

// SetRunID tags ctx with a job run id.
func SetRunID(ctx context.Context, id uint) context.Context {
	return WithFields(ctx, Fields{FieldRunID: id})
}

// SetBatchID tags ctx with a sync batch id.
func SetBatchID(ctx context.Context, id uint) context.Context {
	return WithFields(ctx, Fields{FieldBatchID: id})
}

// SetEntityType tags ctx with the entity type being synced.
func SetEntityType(ctx context.Context, entityType string) context.Context {
	return WithFields(ctx, Fields{FieldEntityType: entityType})
}

// SetComponent tags ctx with a component name.
func SetComponent(ctx context.Context, name string) context.Context {
	return WithFields(ctx, Fields{FieldComponent: name})
}

// SetSessionID tags ctx with a realtime session id.
func SetSessionID(ctx context.Context, id string) context.Context {
	return WithFields(ctx, Fields{FieldSessionID: id})
}

// GetRequestID returns the request id carried by ctx, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := FromContext(ctx).Data[FieldRequestID].(string)
	return id
}
