package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsSecretsAndHashesIdentities(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"api_key", "sk-live-123",
		"user_id", "5b3c",
		"status", "COMPLETED",
		"upload_url", "https://storage.googleapis.com/x?X-Goog-Signature=abc",
	})
	if len(out) != 8 {
		t.Fatalf("len: want=8 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key: want=[REDACTED] got=%v", out[1])
	}
	hashed, _ := out[3].(string)
	if !strings.HasPrefix(hashed, "hash:") || len(hashed) != len("hash:")+12 {
		t.Fatalf("user_id: want hash:<12 hex> got=%v", out[3])
	}
	if out[5] != "COMPLETED" {
		t.Fatalf("status: want=COMPLETED got=%v", out[5])
	}
	if out[7] != "[REDACTED]" {
		t.Fatalf("upload_url: want=[REDACTED] got=%v", out[7])
	}
}

func TestSanitizeKVsKeepsOddTrailingKey(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("trailing: want dangling kept got=%v", out)
	}
}

func TestSanitizeValueRedactsJWTLookingStrings(t *testing.T) {
	jwt := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig"
	if got := sanitizeValue("note", jwt); got != "[REDACTED]" {
		t.Fatalf("jwt: want=[REDACTED] got=%v", got)
	}
	nested := sanitizeValue("meta", map[string]interface{}{"password": "x", "n": 2}).(map[string]interface{})
	if nested["password"] != "[REDACTED]" || nested["n"] != 2 {
		t.Fatalf("nested: got=%v", nested)
	}
}

func TestHashValueIsStable(t *testing.T) {
	a := hashValue("user-1")
	b := hashValue("user-1")
	if a != b {
		t.Fatalf("hash stability: want=%s got=%s", a, b)
	}
	if hashValue("") != "" {
		t.Fatalf("empty: want empty hash")
	}
}
