package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStatic(t *testing.T) {
	tok, err := Static("abc123").Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok != "abc123" {
		t.Errorf("token = %q, want %q", tok, "abc123")
	}

	if _, err := Static("").Token(context.Background()); err == nil {
		t.Error("empty static token should error")
	}
}

func TestEnvToken(t *testing.T) {
	t.Setenv("STREAM_TEST_TOKEN", "env-secret")

	tok, err := EnvToken("STREAM_TEST_TOKEN").Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok != "env-secret" {
		t.Errorf("token = %q, want %q", tok, "env-secret")
	}

	if _, err := EnvToken("STREAM_TEST_TOKEN_MISSING").Token(context.Background()); err == nil {
		t.Error("missing env var should error")
	}
}

func TestFileToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("file-secret\n"), 0o600); err != nil {
		t.Fatalf("write temp token: %v", err)
	}

	tok, err := FileToken(path).Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok != "file-secret" {
		t.Errorf("token = %q, want %q", tok, "file-secret")
	}

	// Rotation: the provider re-reads on every call.
	if err := os.WriteFile(path, []byte("rotated\n"), 0o600); err != nil {
		t.Fatalf("rewrite temp token: %v", err)
	}
	tok, err = FileToken(path).Token(context.Background())
	if err != nil {
		t.Fatalf("Token after rotation failed: %v", err)
	}
	if tok != "rotated" {
		t.Errorf("token = %q, want %q", tok, "rotated")
	}

	if _, err := FileToken(filepath.Join(t.TempDir(), "nope")).Token(context.Background()); err == nil {
		t.Error("missing file should error")
	}
}
