// Package trace reads the flat, chronologically ordered event streams that
// feed the analyses.
//
// A trace file holds one JSON object per line:
//
//	{"name":"k8s_ust:event","ts":1700000000000000100,"fields":{"op_name":"Event","op_ctx":"Name: pod-a, ..."}}
//
// Field values may be strings, numbers or booleans and are exposed as strings.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedEvent is returned for a line that cannot be decoded into an event
var ErrMalformedEvent = errors.New("malformed trace event")

// Event is one record of a trace
type Event interface {
	// Name is the event type, e.g. KubernetesEvent or SchedSwitch
	Name() string
	// Timestamp is the event time in Unix nanoseconds
	Timestamp() int64
	// Field returns the string form of a payload field
	Field(key string) (string, bool)
}

// Source is an ordered stream of events. Next returns io.EOF at the end of the
// stream and an error wrapping ErrMalformedEvent for a record that could not be
// decoded; in that case the caller may keep reading.
type Source interface {
	Next() (Event, error)
}

// Record is the concrete Event decoded from a trace file
type Record struct {
	EventName string            `json:"name"`
	TS        int64             `json:"ts"`
	Fields    map[string]string `json:"-"`
}

// NewRecord builds a record, mainly for tests and generators
func NewRecord(name string, ts int64, fields map[string]string) *Record {
	if fields == nil {
		fields = map[string]string{}
	}
	return &Record{EventName: name, TS: ts, Fields: fields}
}

// Name implements Event
func (r *Record) Name() string { return r.EventName }

// Timestamp implements Event
func (r *Record) Timestamp() int64 { return r.TS }

// Field implements Event
func (r *Record) Field(key string) (string, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

type wireRecord struct {
	Name   string                     `json:"name"`
	TS     int64                      `json:"ts"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// UnmarshalJSON decodes a record, converting scalar field values to strings.
// null fields are treated as absent.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Name == "" {
		return errors.New("event has no name")
	}
	r.EventName = w.Name
	r.TS = w.TS
	r.Fields = make(map[string]string, len(w.Fields))
	for key, raw := range w.Fields {
		value, present, err := scalarString(raw)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		if present {
			r.Fields[key] = value
		}
	}
	return nil
}

// MarshalJSON encodes the record in the trace line format
func (r *Record) MarshalJSON() ([]byte, error) {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return json.Marshal(struct {
		Name   string            `json:"name"`
		TS     int64             `json:"ts"`
		Fields map[string]string `json:"fields"`
	}{r.EventName, r.TS, fields})
}

func scalarString(raw json.RawMessage) (string, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", false, err
		}
		return strconv.FormatBool(b), true, nil
	case '{', '[':
		return "", false, errors.New("nested values are not supported")
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false, err
		}
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true, nil
		}
		if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
			return strconv.FormatUint(u, 10), true, nil
		}
		// exponent forms such as 4.0e9 render as plain decimals
		f, err := n.Float64()
		if err != nil {
			return "", false, err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true, nil
	}
}
