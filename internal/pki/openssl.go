package pki

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

// ErrToolchainMissing is returned when the openssl executable cannot be
// resolved on the execution path.
var ErrToolchainMissing = errors.New("openssl executable not found on PATH")

// OpenSSLBackend implements CertificateBackend by invoking the openssl
// binary as subprocesses. The argument set for each operation is fixed;
// changing it changes the artifact contract.
type OpenSSLBackend struct {
	binary string
}

// NewOpenSSLBackend resolves the openssl binary on the execution path.
// Absence is reported before any generation begins so operators get a
// distinct, actionable error rather than a mid-sequence subprocess failure.
func NewOpenSSLBackend() (*OpenSSLBackend, error) {
	path, err := exec.LookPath("openssl")
	if err != nil {
		return nil, fmt.Errorf("%w: install openssl or select the native backend with --backend=native", ErrToolchainMissing)
	}

	return &OpenSSLBackend{binary: path}, nil
}

// run executes openssl with the given arguments, capturing stderr into the
// returned error on failure.
func (b *OpenSSLBackend) run(args ...string) error {
	cmd := exec.Command(b.binary, args...) // #nosec G204 - binary resolved via LookPath, args are fixed flags
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return fmt.Errorf("openssl %s: %w: %s", args[0], err, msg)
		}
		return fmt.Errorf("openssl %s: %w", args[0], err)
	}

	return nil
}

// GenerateRSAKey writes an unencrypted RSA private key to keyPath.
func (b *OpenSSLBackend) GenerateRSAKey(keyPath string, bits int) error {
	return b.run("genrsa", "-out", keyPath, strconv.Itoa(bits))
}

// GenerateEncryptedRSAKey writes an AES-256 encrypted RSA private key to
// keyPath.
func (b *OpenSSLBackend) GenerateEncryptedRSAKey(keyPath string, bits int, passphrase string) error {
	return b.run("genrsa",
		"-aes256",
		"-passout", "pass:"+passphrase,
		"-out", keyPath,
		strconv.Itoa(bits))
}

// SelfSign creates a self-signed certificate for the key at keyPath.
func (b *OpenSSLBackend) SelfSign(keyPath, certPath, commonName string, days int) error {
	return b.run("req", "-x509", "-new", "-nodes",
		"-key", keyPath,
		"-sha256",
		"-days", strconv.Itoa(days),
		"-subj", "/CN="+commonName,
		"-out", certPath)
}

// CreateCSR creates a certificate signing request from the encrypted key at
// keyPath, using the signing configuration for extension requests.
func (b *OpenSSLBackend) CreateCSR(keyPath, passphrase, configPath, csrPath string, ext ExtensionConfig) error {
	return b.run("req", "-new",
		"-key", keyPath,
		"-passin", "pass:"+passphrase,
		"-subj", "/CN="+ext.CommonName,
		"-config", configPath,
		"-out", csrPath)
}

// SignCSR signs the request with the CA key and certificate, applying the
// v3 extension block from the signing configuration.
func (b *OpenSSLBackend) SignCSR(csrPath, caKeyPath, caCertPath, configPath, certPath string, days int, ext ExtensionConfig) error {
	return b.run("x509", "-req",
		"-in", csrPath,
		"-CA", caCertPath,
		"-CAkey", caKeyPath,
		"-CAcreateserial",
		"-sha256",
		"-days", strconv.Itoa(days),
		"-extfile", configPath,
		"-extensions", "v3_ext",
		"-out", certPath)
}
