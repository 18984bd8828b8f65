// Package certstest builds throwaway PKCS#12 client identities for tests.
package certstest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

// Identity is a generated key pair with its self-signed certificate.
type Identity struct {
	Key  *ecdsa.PrivateKey
	Cert *x509.Certificate
}

// NewIdentity generates a self-signed client certificate.
func NewIdentity(t testing.TB, commonName string) *Identity {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	return &Identity{Key: key, Cert: cert}
}

// Bundle encodes the identity as a PKCS#12 bundle protected by password.
func (id *Identity) Bundle(t testing.TB, password string) []byte {
	t.Helper()

	pfx, err := pkcs12.Modern.Encode(id.Key, id.Cert, nil, password)
	if err != nil {
		t.Fatalf("encode pkcs12: %v", err)
	}
	return pfx
}

// BundleBase64 is Bundle encoded as standard base64, the form kept in configuration.
func (id *Identity) BundleBase64(t testing.TB, password string) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(id.Bundle(t, password))
}

// TrustStoreBase64 encodes only the certificate, with no private key.
func (id *Identity) TrustStoreBase64(t testing.TB, password string) string {
	t.Helper()

	pfx, err := pkcs12.Modern.EncodeTrustStore([]*x509.Certificate{id.Cert}, password)
	if err != nil {
		t.Fatalf("encode trust store: %v", err)
	}
	return base64.StdEncoding.EncodeToString(pfx)
}
