// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
)

// KeyPair is a PEM-encoded RSA key pair.
type KeyPair struct {
	Private string // PKCS#1 "RSA PRIVATE KEY"
	Public  string // PKIX "PUBLIC KEY"
	Key     *rsa.PrivateKey
}

var (
	pairsMu sync.Mutex
	pairs   = map[int]KeyPair{}
)

// RSAKeyPair returns a 2048-bit key pair. The n-th pair is generated once per
// test binary, so RSAKeyPair(t, 0) and RSAKeyPair(t, 1) are distinct keys.
func RSAKeyPair(t testing.TB, n int) KeyPair {
	t.Helper()

	pairsMu.Lock()
	defer pairsMu.Unlock()
	if kp, ok := pairs[n]; ok {
		return kp
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	kp := KeyPair{
		Private: string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})),
		Public:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
		Key:     key,
	}
	pairs[n] = kp
	return kp
}
