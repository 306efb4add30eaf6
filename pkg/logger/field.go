package logger

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

// Field is one key/value pair attached to a record.
type Field struct {
	Key   string
	Value any
}

func (f Field) attr() slog.Attr { return slog.Any(f.Key, f.Value) }

// Constructors for the common value kinds.
func String(key, val string) Field                 { return Field{Key: key, Value: val} }
func Int(key string, val int) Field                { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }
func Error(err error) Field                        { return Field{Key: "error", Value: err} }

type fieldsKey struct{}

// ContextWith returns a context whose records, logged through any Logger,
// carry fields ahead of the call site's own. Fields accumulate across calls.
func ContextWith(ctx context.Context, fields ...Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	merged := append(slices.Clone(FieldsFrom(ctx)), fields...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FieldsFrom returns the fields attached by ContextWith.
func FieldsFrom(ctx context.Context) []Field {
	fields, _ := ctx.Value(fieldsKey{}).([]Field)
	return fields
}
