// Package asymcrypto implements the RSA primitives used to sign stored
// records: private-key encode, public-key decode, sign and verify.
//
// The scheme is fixed: SHA-256 digests, RSA PKCS#1 v1.5 padding and
// lower-case hex output. Signatures carry no algorithm or version tag, so
// changing any of these breaks verification of records already stored.
package asymcrypto

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/iota-pico/iota-pico-storage-sub001/pkg/errs"
)

// Provider offers the four key-pair primitives. Keys are PEM strings passed
// on every call; implementations hold no other state.
type Provider interface {
	Encode(privateKey, data string) (string, error)
	Decode(publicKey, data string) (string, error)
	Sign(privateKey, data string) (string, error)
	Verify(publicKey, data, signature string) (bool, error)
}

// RSAProvider is the RSA-SHA256 Provider.
type RSAProvider struct{}

// NewRSAProvider returns the RSA-SHA256 provider.
func NewRSAProvider() *RSAProvider {
	return &RSAProvider{}
}

var _ Provider = (*RSAProvider)(nil)

// Encode encrypts data with the private key using PKCS#1 v1.5 type 1 padding
// and returns hex. data must fit in the key modulus minus 11 bytes.
func (p *RSAProvider) Encode(privateKey, data string) (string, error) {
	if data == "" {
		return "", errs.InvalidArgument(errs.CodeEmpty, "data must not be empty")
	}
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	if len(data) > key.Size()-11 {
		return "", errs.InvalidArgument(errs.CodeEncrypt, "data is too long for the key size")
	}
	// A zero hash makes SignPKCS1v15 pad the input verbatim.
	out, err := rsa.SignPKCS1v15(nil, key, crypto.Hash(0), []byte(data))
	if err != nil {
		return "", errs.Crypto(errs.CodeEncrypt, "private key encrypt failed", err)
	}
	return hex.EncodeToString(out), nil
}

// Decode reverses Encode with the matching public key.
func (p *RSAProvider) Decode(publicKey, data string) (string, error) {
	if data == "" {
		return "", errs.InvalidArgument(errs.CodeEmpty, "data must not be empty")
	}
	key, err := ParsePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	ciphertext, err := hex.DecodeString(data)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidArgument, errs.CodeMalformedInput, "ciphertext is not valid hex", err)
	}
	plain, err := publicDecrypt(key, ciphertext)
	if err != nil {
		return "", errs.Crypto(errs.CodeDecrypt, "public key decrypt failed", err)
	}
	return string(plain), nil
}

// Sign returns the hex RSA-SHA256 PKCS#1 v1.5 signature of data.
func (p *RSAProvider) Sign(privateKey, data string) (string, error) {
	if data == "" {
		return "", errs.InvalidArgument(errs.CodeEmpty, "data must not be empty")
	}
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256([]byte(data))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", errs.Crypto(errs.CodeSign, "sign failed", err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify reports whether signature is a valid signature of data under
// publicKey. A signature that does not match, including one that is not hex,
// yields false and no error; only empty arguments and malformed keys fail.
func (p *RSAProvider) Verify(publicKey, data, signature string) (bool, error) {
	if data == "" {
		return false, errs.InvalidArgument(errs.CodeEmpty, "data must not be empty")
	}
	if signature == "" {
		return false, errs.InvalidArgument(errs.CodeEmpty, "signature must not be empty")
	}
	key, err := ParsePublicKey(publicKey)
	if err != nil {
		return false, err
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false, nil
	}
	digest := sha256.Sum256([]byte(data))
	return rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig) == nil, nil
}

var errDecryption = errors.New("asymcrypto: decryption error")

// publicDecrypt applies the public exponent and strips type 1 padding:
// 0x00 0x01 0xFF{8,} 0x00 message.
func publicDecrypt(pub *rsa.PublicKey, ciphertext []byte) ([]byte, error) {
	k := pub.Size()
	if len(ciphertext) != k {
		return nil, errDecryption
	}
	c := new(big.Int).SetBytes(ciphertext)
	if c.Cmp(pub.N) >= 0 {
		return nil, errDecryption
	}
	m := new(big.Int).Exp(c, big.NewInt(int64(pub.E)), pub.N)
	em := m.FillBytes(make([]byte, k))

	if subtle.ConstantTimeByteEq(em[0], 0) != 1 || subtle.ConstantTimeByteEq(em[1], 1) != 1 {
		return nil, errDecryption
	}
	sep := bytes.IndexByte(em[2:], 0)
	if sep < 8 {
		return nil, errDecryption
	}
	for _, b := range em[2 : 2+sep] {
		if b != 0xff {
			return nil, errDecryption
		}
	}
	return em[2+sep+1:], nil
}
