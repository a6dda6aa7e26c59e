// Package certutil generates and loads the self-signed TLS certificate
// the rendezvous server uses to protect the room-code control channel
// from passive network observers. gday does not build a PKI: clients
// connect with certificate verification disabled and rely on the PAKE
// handshake in internal/holepunch for peer authentication, so this
// package only needs to produce a server certificate and let operators
// pin it by fingerprint if they want to.
package certutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// CertOptions controls the shape of a generated self-signed certificate.
type CertOptions struct {
	CommonName string
	DNSNames   []string
	IPAddrs    []net.IP
	ValidFor   time.Duration
}

// DefaultServerOptions returns sane defaults for a rendezvous server
// certificate: one year validity, loopback covered for local testing.
func DefaultServerOptions(commonName string) CertOptions {
	return CertOptions{
		CommonName: commonName,
		DNSNames:   []string{commonName, "localhost"},
		IPAddrs:    []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
		ValidFor:   365 * 24 * time.Hour,
	}
}

// GeneratedCert holds a freshly minted certificate and its private key,
// in both parsed and PEM-encoded form.
type GeneratedCert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	CertPEM     []byte
	KeyPEM      []byte
}

// Fingerprint returns the SHA-256 fingerprint of the certificate's DER
// encoding, hex-encoded, so operators can pin or compare it out of
// band.
func (g *GeneratedCert) Fingerprint() string {
	return Fingerprint(g.Certificate.Raw)
}

// TLSCertificate builds a tls.Certificate suitable for
// tls.Config.Certificates from the generated key pair.
func (g *GeneratedCert) TLSCertificate() (tls.Certificate, error) {
	return tls.X509KeyPair(g.CertPEM, g.KeyPEM)
}

// SaveToFiles writes the certificate and key PEM to the given paths.
func (g *GeneratedCert) SaveToFiles(certPath, keyPath string) error {
	if err := os.WriteFile(certPath, g.CertPEM, 0o644); err != nil {
		return fmt.Errorf("certutil: write cert: %w", err)
	}
	if err := os.WriteFile(keyPath, g.KeyPEM, 0o600); err != nil {
		return fmt.Errorf("certutil: write key: %w", err)
	}
	return nil
}

// GenerateSelfSignedCert creates a self-signed ECDSA P-256 certificate
// for use as the rendezvous server's TLS identity.
func GenerateSelfSignedCert(opts CertOptions) (*GeneratedCert, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("certutil: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("certutil: generate serial: %w", err)
	}

	validFor := opts.ValidFor
	if validFor == 0 {
		validFor = 365 * 24 * time.Hour
	}
	now := time.Now()

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{Organization: []string{"gday"}, CommonName: opts.CommonName},
		NotBefore:    now.Add(-5 * time.Minute),
		NotAfter:     now.Add(validFor),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     opts.DNSNames,
		IPAddresses:  opts.IPAddrs,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("certutil: create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("certutil: parse generated certificate: %w", err)
	}

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("certutil: marshal key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})

	return &GeneratedCert{
		Certificate: cert,
		PrivateKey:  priv,
		CertPEM:     certPEM,
		KeyPEM:      keyPEM,
	}, nil
}

// LoadCert parses a PEM-encoded certificate.
func LoadCert(certPEM []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("certutil: no CERTIFICATE block found")
	}
	return x509.ParseCertificate(block.Bytes)
}

// Fingerprint returns the hex-encoded SHA-256 digest of raw DER bytes.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// FingerprintFromPEM returns the fingerprint of a PEM-encoded
// certificate.
func FingerprintFromPEM(certPEM []byte) (string, error) {
	cert, err := LoadCert(certPEM)
	if err != nil {
		return "", err
	}
	return Fingerprint(cert.Raw), nil
}

// IsExpired reports whether cert's NotAfter has already passed.
func IsExpired(cert *x509.Certificate) bool {
	return time.Now().After(cert.NotAfter)
}
