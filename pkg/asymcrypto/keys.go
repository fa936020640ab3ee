package asymcrypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/iota-pico/iota-pico-storage-sub001/pkg/errs"
)

// ParsePrivateKey decodes a PEM-encoded RSA private key. PKCS#1, PKCS#8 and
// OpenSSH encodings are accepted.
func ParsePrivateKey(privateKey string) (*rsa.PrivateKey, error) {
	if strings.TrimSpace(privateKey) == "" {
		return nil, errs.InvalidArgument(errs.CodeEmpty, "private key must not be empty")
	}
	raw, err := ssh.ParseRawPrivateKey([]byte(privateKey))
	if err != nil {
		return nil, malformedKey("private key", err)
	}
	switch k := raw.(type) {
	case *rsa.PrivateKey:
		return k, nil
	default:
		return nil, malformedKey("private key", fmt.Errorf("unsupported key type %T", raw))
	}
}

// ParsePublicKey decodes an RSA public key. PEM blocks holding PKIX or PKCS#1
// keys are accepted, as is a single authorized_keys line ("ssh-rsa AAAA...").
func ParsePublicKey(publicKey string) (*rsa.PublicKey, error) {
	if strings.TrimSpace(publicKey) == "" {
		return nil, errs.InvalidArgument(errs.CodeEmpty, "public key must not be empty")
	}

	block, _ := pem.Decode([]byte(publicKey))
	if block == nil {
		return parseAuthorizedKey(publicKey)
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, malformedKey("public key", err)
		}
		return key, nil
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, malformedKey("public key", err)
		}
		return asRSAPublicKey(cert.PublicKey)
	default:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, malformedKey("public key", err)
		}
		return asRSAPublicKey(key)
	}
}

func parseAuthorizedKey(publicKey string) (*rsa.PublicKey, error) {
	pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey))
	if err != nil {
		return nil, malformedKey("public key", errors.New("no PEM block or authorized key found"))
	}
	cpk, ok := pk.(ssh.CryptoPublicKey)
	if !ok {
		return nil, malformedKey("public key", fmt.Errorf("unsupported key type %s", pk.Type()))
	}
	return asRSAPublicKey(cpk.CryptoPublicKey())
}

func asRSAPublicKey(key any) (*rsa.PublicKey, error) {
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, malformedKey("public key", fmt.Errorf("unsupported key type %T", key))
	}
	return pub, nil
}

func malformedKey(role string, cause error) *errs.Error {
	return &errs.Error{
		Kind:    errs.KindInvalidArgument,
		Code:    errs.CodeMalformedKey,
		Message: "malformed " + role,
		Cause:   cause,
	}
}
