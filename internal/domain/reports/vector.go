package reports

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Vector maps a pgvector column using its text form "[1,2,3]".
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return v.String(), nil
}

func (v Vector) String() string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func (v *Vector) Scan(src any) error {
	var raw string
	switch t := src.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		raw = t
	case []byte:
		raw = string(t)
	default:
		return fmt.Errorf("vector: unsupported scan type %T", src)
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		*v = Vector{}
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make(Vector, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return fmt.Errorf("vector: %w", err)
		}
		out = append(out, float32(f))
	}
	*v = out
	return nil
}
