package keypair

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/youmark/pkcs8"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return key
}

func encryptedPEM(t *testing.T, key *rsa.PrivateKey, pass string) []byte {
	t.Helper()
	der, err := pkcs8.MarshalPrivateKey(key, []byte(pass), nil)
	if err != nil {
		t.Fatalf("encrypting key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: der})
}

func TestLoadFile_Encrypted(t *testing.T) {
	key := generateKey(t)
	path := filepath.Join(t.TempDir(), "rsa_key.p8")
	if err := os.WriteFile(path, encryptedPEM(t, key, "s3cret"), 0o600); err != nil {
		t.Fatalf("writing key: %v", err)
	}

	got, err := LoadFile(path, "s3cret")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !got.Private.Equal(key) {
		t.Error("decrypted key does not match original")
	}

	want, _ := x509.MarshalPKCS8PrivateKey(key)
	if !bytes.Equal(got.DER, want) {
		t.Error("DER is not the unencrypted PKCS#8 encoding")
	}

	block, _ := pem.Decode(got.PEM())
	if block == nil || block.Type != "PRIVATE KEY" {
		t.Errorf("PEM() produced %v, want PRIVATE KEY block", block)
	}
}

func TestParse_Errors(t *testing.T) {
	key := generateKey(t)
	enc := encryptedPEM(t, key, "right")

	tests := []struct {
		name string
		data []byte
		pass string
	}{
		{"wrong passphrase", enc, "wrong"},
		{"missing passphrase", enc, ""},
		{"not pem", []byte("definitely not a key"), "x"},
		{"unsupported block", pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1, 2}}), ""},
		{"garbage pkcs8", pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1, 2, 3}}), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.data, []byte(tt.pass)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParse_Unencrypted(t *testing.T) {
	key := generateKey(t)

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	der, _ := x509.MarshalPKCS8PrivateKey(key)
	plain := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	for name, data := range map[string][]byte{"pkcs1": pkcs1, "pkcs8": plain} {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(data, nil)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !bytes.Equal(got.DER, der) {
				t.Error("DER mismatch")
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.p8"), "x"); err == nil {
		t.Error("expected error for missing file")
	}
}
