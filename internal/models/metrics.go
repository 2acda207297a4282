package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// MetricField is one key/value pair of an invocation metrics object.
type MetricField struct {
	Key   string
	Value json.RawMessage
}

// Metrics is a flat JSON object whose key order is preserved.
type Metrics []MetricField

// UnmarshalJSON decodes an object keeping the order keys appear on the wire.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("metrics: expected JSON object")
	}

	fields := Metrics{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.New("metrics: expected string key")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		fields = append(fields, MetricField{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*m = fields
	return nil
}

// MarshalJSON encodes the fields as an object in their stored order.
func (m Metrics) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(f.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NumberField builds a numeric metric field.
func NumberField(key string, v float64) MetricField {
	return MetricField{Key: key, Value: json.RawMessage(strconv.FormatFloat(v, 'f', -1, 64))}
}

// Format renders the metrics as "key: value" lines in wire order.
func (m Metrics) Format() string {
	lines := make([]string, 0, len(m))
	for _, f := range m {
		lines = append(lines, f.Key+": "+formatValue(f.Value))
	}
	return strings.Join(lines, "\n")
}

func formatValue(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	case nil:
		return "null"
	default:
		return string(bytes.TrimSpace(raw))
	}
}
