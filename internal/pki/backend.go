package pki

import "fmt"

// CertificateBackend performs the individual certificate generation steps.
// Implementations include OpenSSLBackend, which invokes the openssl binary
// as subprocesses, and NativeBackend, which performs the same operations
// in-process with crypto/x509. Both produce interchangeable artifacts.
//
// All operations take explicit file paths; no implementation changes the
// process working directory.
type CertificateBackend interface {
	// GenerateRSAKey writes an unencrypted RSA private key of the given bit
	// length to keyPath in PEM encoding.
	GenerateRSAKey(keyPath string, bits int) error

	// GenerateEncryptedRSAKey writes an RSA private key to keyPath,
	// encrypted with AES-256 under the passphrase.
	GenerateEncryptedRSAKey(keyPath string, bits int, passphrase string) error

	// SelfSign creates a self-signed CA certificate for the key at keyPath
	// with the given subject common name, a SHA-256 signature and the given
	// validity in days.
	SelfSign(keyPath, certPath, commonName string, days int) error

	// CreateCSR creates a certificate signing request at csrPath from the
	// encrypted key at keyPath, using the signing configuration at
	// configPath for extension requests.
	CreateCSR(keyPath, passphrase, configPath, csrPath string, ext ExtensionConfig) error

	// SignCSR signs the request at csrPath with the CA key and certificate,
	// applying the v3 extension block from the signing configuration, and
	// writes the resulting certificate to certPath with the given validity
	// in days.
	SignCSR(csrPath, caKeyPath, caCertPath, configPath, certPath string, days int, ext ExtensionConfig) error
}

// NewBackend returns the certificate backend for the given name.
func NewBackend(name string) (CertificateBackend, error) {
	switch name {
	case "openssl":
		return NewOpenSSLBackend()
	case "native":
		return NewNativeBackend(), nil
	default:
		return nil, fmt.Errorf("unknown certificate backend %q", name)
	}
}
