package middleware

import (
	"strings"
	"testing"
	"time"
)

func TestParseAxRequestAt(t *testing.T) {
	// epoch seconds
	got, err := parseAxRequestAt("1736123456")
	if err != nil {
		t.Fatalf("epoch seconds: %v", err)
	}
	if got.Unix() != 1736123456 {
		t.Fatalf("epoch seconds parsed to %v", got)
	}

	// epoch milliseconds
	got, err = parseAxRequestAt("1736123456789")
	if err != nil {
		t.Fatalf("epoch ms: %v", err)
	}
	if got.UnixMilli() != 1736123456789 {
		t.Fatalf("epoch ms parsed to %v", got)
	}

	// RFC3339 with offset normalizes to UTC
	got, err = parseAxRequestAt("2026-08-26T10:00:00+07:00")
	if err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if got.Location() != time.UTC || got.Hour() != 3 {
		t.Fatalf("tz not normalized: %v", got)
	}

	for _, raw := range []string{"", "not-a-time", "2026-08-26T10:00:00"} {
		if _, err := parseAxRequestAt(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestValidReqID(t *testing.T) {
	for _, id := range []string{
		strings.Repeat("a", 32),
		"3f9a6a1b-3d54-4fbe-8b3a-6b3e8d6b2c88",
		"  3F9A6A1B-3D54-4FBE-8B3A-6B3E8D6B2C88 ", // trimmed and lowered
	} {
		if !validReqID(id) {
			t.Fatalf("expected valid: %q", id)
		}
	}
	for _, id := range []string{"", "short", strings.Repeat("g", 32)} {
		if validReqID(id) {
			t.Fatalf("expected invalid: %q", id)
		}
	}
}

func TestBuildKey(t *testing.T) {
	key := buildKey("POST", "/loans", "0xowner", "req1")
	if key != "idemp:ax:post:/loans:0xowner:req1" {
		t.Fatalf("key = %q", key)
	}
}
