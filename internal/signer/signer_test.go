package signer

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeKeyPEM(t *testing.T, key any) string {
	t.Helper()

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "key.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const testBOM = `{
  "bomFormat": "CycloneDX",
  "specVersion": "1.6",
  "version": 1,
  "components": [{"type": "application", "name": "app", "bom-ref": "app-1.0"}]
}`

func TestSignDocument_Ed25519RoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(writeKeyPEM(t, priv), "Ed25519", "", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	signed, info, err := SignDocument([]byte(testBOM), s)
	if err != nil {
		t.Fatalf("SignDocument: %v", err)
	}

	if info.Algorithm != "Ed25519" {
		t.Errorf("algorithm = %q", info.Algorithm)
	}
	// An Ed25519 signature is 64 bytes: 86 base64url chars, no padding.
	if len(info.Value) != 86 {
		t.Errorf("value length = %d, want 86", len(info.Value))
	}
	if bytes.ContainsRune([]byte(info.Value), '=') {
		t.Error("value carries base64 padding")
	}

	var out map[string]any
	if err := json.Unmarshal(signed, &out); err != nil {
		t.Fatalf("signed output is not valid JSON: %v", err)
	}
	sig, ok := out["signature"].(map[string]any)
	if !ok {
		t.Fatal("no top-level signature object")
	}
	if sig["algorithm"] != "Ed25519" {
		t.Errorf("signature.algorithm = %v", sig["algorithm"])
	}
	jwk := sig["publicKey"].(map[string]any)
	if jwk["kty"] != "OKP" || jwk["crv"] != "Ed25519" {
		t.Errorf("publicKey = %v", jwk)
	}

	if err := VerifyDocument(signed); err != nil {
		t.Errorf("VerifyDocument: %v", err)
	}
}

func TestVerifyDocument_DetectsTampering(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(writeKeyPEM(t, priv), "Ed25519", "", "")
	if err != nil {
		t.Fatal(err)
	}
	signed, _, err := SignDocument([]byte(testBOM), s)
	if err != nil {
		t.Fatal(err)
	}

	// Flip one byte outside the signature object: rename the component.
	tampered := bytes.Replace(signed, []byte(`"name": "app"`), []byte(`"name": "bpp"`), 1)
	if bytes.Equal(tampered, signed) {
		t.Fatal("tampering had no effect on the payload")
	}
	if err := VerifyDocument(tampered); err == nil {
		t.Fatal("tampered document verified")
	}
}

func TestSign_ES256RoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(writeKeyPEM(t, priv), "ES256", "test-key", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	canonical := []byte(`{"a":1}`)
	info, err := s.Sign(canonical)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if info.KeyID != "test-key" {
		t.Errorf("key id = %q", info.KeyID)
	}
	if info.PublicKey.Kty != "EC" || info.PublicKey.Crv != "P-256" {
		t.Errorf("jwk = %+v", info.PublicKey)
	}

	if err := Verify(canonical, "ES256", info.Value, &priv.PublicKey); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if err := Verify([]byte(`{"a":2}`), "ES256", info.Value, &priv.PublicKey); err == nil {
		t.Error("verify passed on different bytes")
	}
}

func TestSign_RS256RoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(writeKeyPEM(t, priv), "RS256", "", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	canonical := []byte(`{"payload":"x"}`)
	info, err := s.Sign(canonical)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if info.PublicKey.Kty != "RSA" || info.PublicKey.N == "" || info.PublicKey.E == "" {
		t.Errorf("jwk = %+v", info.PublicKey)
	}
	if err := Verify(canonical, "RS256", info.Value, &priv.PublicKey); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestNew_AlgorithmKeyMismatch(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(writeKeyPEM(t, priv), "RS256", "", ""); !errors.Is(err, ErrKeyError) {
		t.Fatalf("err = %v, want ErrKeyError", err)
	}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	if _, err := New("/dev/null", "HS256", "", ""); !errors.Is(err, ErrKeyError) {
		t.Fatalf("err = %v, want ErrKeyError (symmetric algorithms unsupported)", err)
	}
}

func TestNew_BadPEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pem")
	if err := os.WriteFile(path, []byte("not a pem file"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path, "Ed25519", "", ""); !errors.Is(err, ErrKeyError) {
		t.Fatalf("err = %v, want ErrKeyError", err)
	}
}

func TestNew_MissingKeyFile(t *testing.T) {
	if _, err := New("/nonexistent/key.pem", "Ed25519", "", ""); !errors.Is(err, ErrKeyError) {
		t.Fatalf("err = %v, want ErrKeyError", err)
	}
}
