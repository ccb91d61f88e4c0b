package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRedactToken(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "[empty]"},
		{"abc", "a..."},
		{"eyJhbGciOiJIUzI1NiJ9.e30.sig", "eyJhbGci..."},
	}
	for _, tt := range tests {
		if got := RedactToken(tt.in); got != tt.want {
			t.Errorf("RedactToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactDSN(t *testing.T) {
	tests := []struct{ in, want string }{
		{"postgres://app:secret@db:5432/laocinema?sslmode=disable", "postgres://app:***@db:5432/laocinema?sslmode=disable"},
		{"redis://localhost:6379/0", "redis://localhost:6379/0"},
		{"postgres://app@db/laocinema", "postgres://app@db/laocinema"},
	}
	for _, tt := range tests {
		if got := RedactDSN(tt.in); got != tt.want {
			t.Errorf("RedactDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(&buf, "janitor", "warn")
	log.Info("dropped")
	log.WithField("deleted", 3).Warn("kept")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "janitor" || line["msg"] != "kept" || line["deleted"] != float64(3) {
		t.Errorf("unexpected line: %v", line)
	}
}
