// Package normalizer turns raw log events into indexable documents.
package normalizer

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/model"
)

// TimestampLayout is the layout of the @timestamp field.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Provenance field names. They are written after the payload and win over
// payload keys with the same name.
const (
	FieldID        = "@id"
	FieldTimestamp = "@timestamp"
	FieldMessage   = "@message"
	FieldOwner     = "@owner"
	FieldLogGroup  = "@log_group"
	FieldLogStream = "@log_stream"
)

// ExtractPayload returns the first tab-separated segment of message that is a
// JSON object. Segments that are not JSON objects are plain text and are
// skipped; ok is false when no segment qualifies.
func ExtractPayload(message string) (payload map[string]any, ok bool) {
	for _, part := range strings.Split(message, "\t") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "{") || !strings.HasSuffix(part, "}") {
			continue
		}
		if obj, ok := decodeObject(part); ok {
			return obj, true
		}
	}
	return nil, false
}

// Flatten returns a copy of obj in which every key holding a JSON object has
// a sibling "_<key>" with the JSON text of that object. Nested objects are
// flattened the same way; arrays and scalars are copied as they are. The
// shadow holds the object as it was before its own shadows were added,
// encoded by Marshal, so its keys appear in sorted order rather than in
// the order of the original payload.
func Flatten(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if nested, ok := v.(map[string]any); ok {
			out[k] = Flatten(nested)
			continue
		}
		out[k] = v
	}
	// shadows are written last so they replace any payload key of the same name
	for k, v := range obj {
		nested, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if text, err := Marshal(nested); err == nil {
			out["_"+k] = string(text)
		}
	}
	return out
}

// Normalize builds the document for event: the flattened structured payload,
// if any, merged with the provenance fields.
func Normalize(batch *model.LogBatch, event model.LogEvent) model.NormalizedRecord {
	rec := model.NormalizedRecord{}
	if payload, ok := ExtractPayload(event.Message); ok {
		rec = Flatten(payload)
	}
	rec[FieldID] = event.ID
	rec[FieldTimestamp] = event.Time().Format(TimestampLayout)
	rec[FieldMessage] = event.Message
	rec[FieldOwner] = batch.Owner
	rec[FieldLogGroup] = batch.LogGroup
	rec[FieldLogStream] = batch.LogStream
	return rec
}

// Marshal encodes v as compact JSON without HTML escaping and without a
// trailing newline.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func decodeObject(s string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return obj, true
}
