package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func TestGenerateRandomString(t *testing.T) {
	s, err := GenerateRandomString(32)
	if err != nil {
		t.Fatalf("GenerateRandomString() error = %v", err)
	}
	if len(s) != 32 {
		t.Errorf("length = %d, want 32", len(s))
	}

	// 两次生成不应相同
	s2, _ := GenerateRandomString(32)
	if s == s2 {
		t.Error("two random strings should differ")
	}
}

func TestGenerateCodeChallenge(t *testing.T) {
	verifier := "test_verifier_1234567890_abcdefghijklmnop"

	challenge := GenerateCodeChallenge(verifier)

	// 手工计算 S256 对照
	h := sha256.Sum256([]byte(verifier))
	want := base64.RawURLEncoding.EncodeToString(h[:])
	if challenge != want {
		t.Errorf("challenge = %s, want %s", challenge, want)
	}

	// RawURLEncoding 不带填充
	if challenge[len(challenge)-1] == '=' {
		t.Error("challenge must not carry base64 padding")
	}
}

func TestCache_SetGetDelete(t *testing.T) {
	SetCache("test-state", "verifier:1:ebay")

	v, ok := GetCache("test-state")
	if !ok || v != "verifier:1:ebay" {
		t.Errorf("GetCache() = %q, %v", v, ok)
	}

	DeleteCache("test-state")
	if _, ok := GetCache("test-state"); ok {
		t.Error("value should be gone after delete")
	}
}
