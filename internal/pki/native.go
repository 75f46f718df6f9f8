package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/keymint/keymint/internal/util"
)

// NativeBackend implements CertificateBackend in-process with crypto/x509.
// It reproduces the openssl backend's parameter semantics (key sizes,
// SHA-256 signatures, validity periods, SAN and extension sets) without
// spawning subprocesses, so the artifacts remain interchangeable.
type NativeBackend struct{}

// NewNativeBackend creates a NativeBackend. There is no toolchain to probe.
func NewNativeBackend() *NativeBackend {
	return &NativeBackend{}
}

// GenerateRSAKey writes an unencrypted RSA private key to keyPath.
func (b *NativeBackend) GenerateRSAKey(keyPath string, bits int) error {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return fmt.Errorf("failed to generate RSA key: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	return util.WriteFileAtomic(keyPath, keyPEM, 0600)
}

// GenerateEncryptedRSAKey writes an RSA private key to keyPath encrypted
// with AES-256-CBC under the passphrase, in the traditional PEM format that
// openssl genrsa -aes256 produces.
func (b *NativeBackend) GenerateEncryptedRSAKey(keyPath string, bits int, passphrase string) error {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return fmt.Errorf("failed to generate RSA key: %w", err)
	}

	// The encrypted traditional PEM encoding is the on-disk contract for
	// this key, passphrase-compatible with the openssl backend.
	//nolint:staticcheck // SA1019: openssl-compatible encrypted PEM is required
	block, err := x509.EncryptPEMBlock(rand.Reader,
		"RSA PRIVATE KEY",
		x509.MarshalPKCS1PrivateKey(key),
		[]byte(passphrase),
		x509.PEMCipherAES256)
	if err != nil {
		return fmt.Errorf("failed to encrypt RSA key: %w", err)
	}

	return util.WriteFileAtomic(keyPath, pem.EncodeToMemory(block), 0600)
}

// SelfSign creates a self-signed CA certificate for the key at keyPath.
func (b *NativeBackend) SelfSign(keyPath, certPath, commonName string, days int) error {
	key, err := loadRSAKey(keyPath, "")
	if err != nil {
		return err
	}

	serialNumber, err := newSerialNumber()
	if err != nil {
		return err
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: commonName,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Duration(days) * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("failed to create CA certificate: %w", err)
	}

	return saveCertificate(certPath, certDER)
}

// CreateCSR creates a certificate signing request from the encrypted key at
// keyPath. The extension config supplies the SAN extension request; the
// signing configuration file is not consulted because the same values are
// available structurally.
func (b *NativeBackend) CreateCSR(keyPath, passphrase, configPath, csrPath string, ext ExtensionConfig) error {
	key, err := loadRSAKey(keyPath, passphrase)
	if err != nil {
		return err
	}

	ips, err := ext.IPAddresses()
	if err != nil {
		return err
	}

	template := &x509.CertificateRequest{
		Subject: pkix.Name{
			CommonName: ext.CommonName,
		},
		DNSNames:           ext.DNSNames(),
		IPAddresses:        ips,
		SignatureAlgorithm: x509.SHA256WithRSA,
	}

	csrDER, err := x509.CreateCertificateRequest(rand.Reader, template, key)
	if err != nil {
		return fmt.Errorf("failed to create certificate request: %w", err)
	}

	csrPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE REQUEST",
		Bytes: csrDER,
	})

	return util.WriteFileAtomic(csrPath, csrPEM, 0600)
}

// SignCSR signs the request with the CA key and certificate. As with
// openssl -extfile, the extension set applied to the final certificate
// comes from the signing configuration, not from the request.
func (b *NativeBackend) SignCSR(csrPath, caKeyPath, caCertPath, configPath, certPath string, days int, ext ExtensionConfig) error {
	csr, err := loadCSR(csrPath)
	if err != nil {
		return err
	}

	if err := csr.CheckSignature(); err != nil {
		return fmt.Errorf("certificate request signature check failed: %w", err)
	}

	caKey, err := loadRSAKey(caKeyPath, "")
	if err != nil {
		return err
	}

	caCert, err := loadCertificate(caCertPath)
	if err != nil {
		return err
	}

	serialNumber, err := newSerialNumber()
	if err != nil {
		return err
	}

	ips, err := ext.IPAddresses()
	if err != nil {
		return err
	}

	template := &x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               csr.Subject,
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Duration(days) * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		DNSNames:              ext.DNSNames(),
		IPAddresses:           ips,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, caCert, csr.PublicKey, caKey)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	return saveCertificate(certPath, certDER)
}

// newSerialNumber generates a random 128-bit certificate serial number.
func newSerialNumber() (*big.Int, error) {
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	return serialNumber, nil
}

// loadRSAKey reads a PEM-encoded RSA private key, decrypting it with the
// passphrase when the block is encrypted.
func loadRSAKey(path, passphrase string) (*rsa.PrivateKey, error) {
	keyData, err := os.ReadFile(path) // #nosec G304 - path is an artifact produced by this run
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode key PEM in %s", path)
	}

	keyBytes := block.Bytes

	//nolint:staticcheck // SA1019: matches the openssl backend's key encoding
	if x509.IsEncryptedPEMBlock(block) {
		//nolint:staticcheck // SA1019
		keyBytes, err = x509.DecryptPEMBlock(block, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt key %s: %w", path, err)
		}
	}

	key, err := x509.ParsePKCS1PrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
	}

	return key, nil
}

// loadCSR reads a PEM-encoded certificate signing request.
func loadCSR(path string) (*x509.CertificateRequest, error) {
	csrData, err := os.ReadFile(path) // #nosec G304 - path is an artifact produced by this run
	if err != nil {
		return nil, fmt.Errorf("failed to read CSR file: %w", err)
	}

	block, _ := pem.Decode(csrData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode CSR PEM in %s", path)
	}

	return x509.ParseCertificateRequest(block.Bytes)
}

// loadCertificate reads a PEM-encoded X.509 certificate.
func loadCertificate(path string) (*x509.Certificate, error) {
	certData, err := os.ReadFile(path) // #nosec G304 - path is an artifact produced by this run
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}

	block, _ := pem.Decode(certData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode certificate PEM in %s", path)
	}

	return x509.ParseCertificate(block.Bytes)
}

// saveCertificate writes a DER certificate to path in PEM encoding.
func saveCertificate(path string, certDER []byte) error {
	certPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: certDER,
	})

	return util.WriteFileAtomic(path, certPEM, 0600)
}
