package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// writeLog formats one line and routes it: DEBUG, INFO and WARN to stdout,
// ERROR and FATAL to stderr. Fields are sorted by key.
func (l *Logger) writeLog(level LogLevel, msg string, fields map[string]interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s: %s", GetTimestamp(), level, l.name, msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteByte('\n')

	var w io.Writer
	if level >= ERROR {
		w = l.errOut
		if w == nil {
			w = os.Stderr
		}
	} else {
		w = l.out
		if w == nil {
			w = os.Stdout
		}
	}
	_, _ = io.WriteString(w, b.String())
}

func (l *Logger) logf(level LogLevel, msg string, args ...interface{}) {
	l.writeLog(level, fmt.Sprintf(msg, args...), l.merged(nil))
}

func (l *Logger) logWithFields(level LogLevel, msg string, fields ...LogField) {
	l.writeLog(level, msg, l.merged(fields))
}

// merged combines context fields, logger fields and call fields, later ones winning
func (l *Logger) merged(fields []LogField) map[string]interface{} {
	ctxFields := contextFields(l.ctx)
	if len(ctxFields) == 0 && len(l.fields) == 0 && len(fields) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(ctxFields)+len(l.fields)+len(fields))
	for k, v := range ctxFields {
		out[k] = v
	}
	for k, v := range l.fields {
		out[k] = v
	}
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

// contextFields extracts the trace and span IDs of the span recorded in ctx
func contextFields(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return map[string]interface{}{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}
}

// GetTimestamp returns the RFC3339 timestamp of a log line.
// LOG_TIMESTAMP overrides it for deterministic output.
func GetTimestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}
