package certs

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"
)

// selfSignedNotAfter is the fixed expiry of self-signed certificates. These
// certificates are placeholders until a real one is issued, so the exact
// date only needs to be far enough out.
var selfSignedNotAfter = time.Date(2038, time.August, 2, 0, 0, 0, 0, time.UTC)

// SelfSigned issues a self-signed certificate for the bound domain. It is
// the default authority when no external CA is selected.
type SelfSigned struct {
	domain string
}

func newSelfSigned(env Env, domain, email, instance string) (Authority, error) {
	return &SelfSigned{domain: domain}, nil
}

// UploadCSR is a no-op: the certificate is built directly from the key.
func (s *SelfSigned) UploadCSR(csr []byte) error {
	return nil
}

// DownloadCRT signs a certificate with the given key. Subject and issuer are
// both the domain common name, validity runs from yesterday to the fixed
// expiry, the serial is a random 128-bit value and the certificate carries a
// critical CA:false basic constraint.
func (s *SelfSigned) DownloadCRT(keyPEM []byte) ([]byte, error) {
	key, err := ParsePrivateKey(keyPEM)
	if err != nil {
		return nil, err
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	name := pkix.Name{CommonName: s.domain}
	template := &x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               name,
		Issuer:                name,
		NotBefore:             time.Now().Add(-24 * time.Hour),
		NotAfter:              selfSignedNotAfter,
		SignatureAlgorithm:    x509.SHA256WithRSA,
		IsCA:                  false,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), nil
}

// Revoke is a no-op: nothing to revoke for a self-signed certificate.
func (s *SelfSigned) Revoke() error {
	return nil
}
