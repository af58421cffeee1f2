package logger

import (
	"context"
	"fmt"
)

// Leveled adapts a Logger to the key/value leveled interface of HTTP
// client libraries such as go-retryablehttp. Errors are logged as warnings
// because those clients report them before retrying.
type Leveled struct {
	inner Logger
}

// NewLeveled wraps l.
func NewLeveled(l Logger) Leveled {
	return Leveled{inner: l}
}

func (l Leveled) Error(msg string, kv ...interface{}) {
	l.inner.Warn(context.Background(), msg, pairs(kv)...)
}

func (l Leveled) Warn(msg string, kv ...interface{}) {
	l.inner.Warn(context.Background(), msg, pairs(kv)...)
}

func (l Leveled) Info(msg string, kv ...interface{}) {
	l.inner.Info(context.Background(), msg, pairs(kv)...)
}

func (l Leveled) Debug(msg string, kv ...interface{}) {
	l.inner.Debug(context.Background(), msg, pairs(kv)...)
}

// pairs turns alternating keys and values into fields. A trailing key
// without a value is dropped.
func pairs(kv []interface{}) []Field {
	out := make([]Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
