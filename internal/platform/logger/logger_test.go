package logger

import (
	"strings"
	"testing"
)

func TestSanitizeValue(t *testing.T) {
	redactOnce.Do(func() { redactionEnabled = true })

	cases := []struct {
		key  string
		val  interface{}
		want func(interface{}) bool
	}{
		{"jwt_secret_key", "s3cr3t", func(v interface{}) bool { return v == "[REDACTED]" }},
		{"authorization", "Bearer x", func(v interface{}) bool { return v == "[REDACTED]" }},
		{"author_id", "8f0c", func(v interface{}) bool { return strings.HasPrefix(v.(string), "hash:") }},
		{"body", "I saw three orange lights", func(v interface{}) bool { return v == "[len=25]" }},
		{"query", "lights", func(v interface{}) bool { return v == "[len=6]" }},
		{"report_id", "abc", func(v interface{}) bool { return v == "abc" }},
	}
	for _, tc := range cases {
		if got := sanitizeValue(tc.key, tc.val); !tc.want(got) {
			t.Fatalf("sanitizeValue(%q) = %v", tc.key, got)
		}
	}
}

func TestSanitizeKVsNested(t *testing.T) {
	redactOnce.Do(func() { redactionEnabled = true })

	out := sanitizeKVs([]interface{}{"payload", map[string]interface{}{"api_key": "k", "shape": "disc"}, "dangling"})
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	m := out[1].(map[string]interface{})
	if m["api_key"] != "[REDACTED]" || m["shape"] != "disc" {
		t.Fatalf("unexpected nested map %v", m)
	}
	if out[2] != "dangling" {
		t.Fatalf("dangling key lost: %v", out)
	}
}
