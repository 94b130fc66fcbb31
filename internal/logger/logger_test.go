package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSetupWriter_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWriter(&buf, "warn", "json")

	l.Info("dropped")
	l.Warn("kept", "size", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["msg"] != "kept" || rec["size"] != float64(3) {
		t.Fatalf("unexpected record %v", rec)
	}
	if L() != l {
		t.Fatal("L should return the logger installed by SetupWriter")
	}
}

func TestSetupWriter_TextDefault(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWriter(&buf, "", "")

	l.Debug("hidden")
	l.Info("fleet_loaded", "size", 50)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record written at default level: %q", out)
	}
	if !strings.Contains(out, "msg=fleet_loaded") || !strings.Contains(out, "size=50") {
		t.Fatalf("unexpected text output %q", out)
	}
}
