// Package certs decodes the password-protected client identity used for mutual TLS
// against the banking API.
package certs

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncerr"
	"software.sslmate.com/src/go-pkcs12"
)

// Identity is a decoded client identity: the private key and its certificate chain,
// leaf first. It must never be logged.
type Identity struct {
	PrivateKey crypto.PrivateKey
	Chain      []*x509.Certificate
}

// Load decodes a base64-encoded PKCS#12 bundle protected by passphrase.
// The bundle must hold exactly one private key and at least one certificate.
func Load(bundleB64, passphrase string) (*Identity, error) {
	der, err := decodeBase64(bundleB64)
	if err != nil {
		return nil, syncerr.Certificate("failed to decode certificate bundle", err)
	}
	return Decode(der, passphrase)
}

// Decode decodes a binary PKCS#12 bundle protected by passphrase.
func Decode(der []byte, passphrase string) (*Identity, error) {
	if len(der) == 0 {
		return nil, syncerr.Certificate("certificate bundle is empty", nil)
	}

	key, leaf, chain, err := pkcs12.DecodeChain(der, passphrase)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, syncerr.Certificate("certificate passphrase is incorrect", err)
		}
		return nil, syncerr.Certificate("failed to decode certificate bundle", err)
	}
	if key == nil {
		return nil, syncerr.Certificate("certificate bundle has no private key", nil)
	}
	if leaf == nil {
		return nil, syncerr.Certificate("certificate bundle has no certificate", nil)
	}

	return &Identity{
		PrivateKey: key,
		Chain:      append([]*x509.Certificate{leaf}, chain...),
	}, nil
}

// Leaf returns the client certificate.
func (id *Identity) Leaf() *x509.Certificate {
	if id == nil || len(id.Chain) == 0 {
		return nil
	}
	return id.Chain[0]
}

// TLSCertificate converts the identity into a certificate usable by crypto/tls.
func (id *Identity) TLSCertificate() (tls.Certificate, error) {
	if id == nil || id.PrivateKey == nil || len(id.Chain) == 0 {
		return tls.Certificate{}, fmt.Errorf("incomplete client identity")
	}

	raw := make([][]byte, 0, len(id.Chain))
	for _, c := range id.Chain {
		raw = append(raw, c.Raw)
	}

	return tls.Certificate{
		Certificate: raw,
		PrivateKey:  id.PrivateKey,
		Leaf:        id.Chain[0],
	}, nil
}

// decodeBase64 accepts standard base64 with or without padding, ignoring
// line breaks that secret stores tend to insert.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, fmt.Errorf("bundle is empty")
	}
	if der, err := base64.StdEncoding.DecodeString(s); err == nil {
		return der, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
