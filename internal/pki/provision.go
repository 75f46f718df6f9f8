package pki

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/keymint/keymint/internal/util"
)

// Fixed artifact filenames. These are the output contract and never change.
const (
	CAKeyFile         = "tls-ca-key.pem"
	CACertFile        = "tls-ca-cert.pem"
	PassphraseFile    = "tls-shared-key-passphrase.txt"
	ServiceKeyFile    = "tls-shared-key.pem"
	SigningConfigFile = "openssl.cnf"
	CSRFile           = "tls-shared.csr"
	ServiceCertFile   = "tls-shared-cert.pem"
)

const (
	caCommonName        = "internal-ca"
	caKeyBits           = 4096
	caValidityDays      = 3650
	serviceKeyBits      = 2048
	serviceValidityDays = 825
	passphraseBytes     = 16
)

// Config holds the provisioner inputs. Key sizes, validity periods and the
// CA identity are fixed constants.
type Config struct {
	OutputDir  string
	CommonName string
	DNSName    string
	IPAddress  string
}

// Provisioner generates a self-signed CA and an mTLS service certificate
// with SAN entries for the configured common name, DNS name and IP address.
// The service private key is encrypted at rest under a randomly generated
// passphrase which is persisted in plaintext alongside it: whoever can read
// the passphrase file can decrypt the key.
type Provisioner struct {
	backend CertificateBackend
	cfg     Config
}

// NewProvisioner creates a TLS certificate provisioner on the given backend.
func NewProvisioner(backend CertificateBackend, cfg Config) *Provisioner {
	return &Provisioner{backend: backend, cfg: cfg}
}

// Run executes the generation sequence. Each step depends on the previous
// step's output, so the first failure aborts the run; already-written files
// are not rolled back and the output directory of a failed run should be
// treated as untrustworthy.
func (p *Provisioner) Run() error {
	log.Info().
		Str("output_dir", p.cfg.OutputDir).
		Str("common_name", p.cfg.CommonName).
		Str("dns_name", p.cfg.DNSName).
		Str("ip_address", p.cfg.IPAddress).
		Msg("provisioning TLS certificates")

	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	caKeyPath := filepath.Join(p.cfg.OutputDir, CAKeyFile)
	caCertPath := filepath.Join(p.cfg.OutputDir, CACertFile)
	passphrasePath := filepath.Join(p.cfg.OutputDir, PassphraseFile)
	serviceKeyPath := filepath.Join(p.cfg.OutputDir, ServiceKeyFile)
	configPath := filepath.Join(p.cfg.OutputDir, SigningConfigFile)
	csrPath := filepath.Join(p.cfg.OutputDir, CSRFile)
	serviceCertPath := filepath.Join(p.cfg.OutputDir, ServiceCertFile)

	log.Info().Int("bits", caKeyBits).Msg("generating CA private key")
	if err := p.backend.GenerateRSAKey(caKeyPath, caKeyBits); err != nil {
		return fmt.Errorf("failed to generate CA key: %w", err)
	}

	log.Info().Str("common_name", caCommonName).Int("days", caValidityDays).Msg("self-signing CA certificate")
	if err := p.backend.SelfSign(caKeyPath, caCertPath, caCommonName, caValidityDays); err != nil {
		return fmt.Errorf("failed to self-sign CA certificate: %w", err)
	}

	// The passphrase must exist before the service key so the key is never
	// written unencrypted.
	passphrase, err := generatePassphrase(passphraseBytes)
	if err != nil {
		return fmt.Errorf("failed to generate passphrase: %w", err)
	}

	if err := util.WriteFileAtomic(passphrasePath, []byte(passphrase), 0600); err != nil {
		return fmt.Errorf("failed to write passphrase: %w", err)
	}

	log.Info().Int("bits", serviceKeyBits).Msg("generating encrypted service key")
	if err := p.backend.GenerateEncryptedRSAKey(serviceKeyPath, serviceKeyBits, passphrase); err != nil {
		return fmt.Errorf("failed to generate service key: %w", err)
	}

	ext := ExtensionConfig{
		CommonName: p.cfg.CommonName,
		DNSName:    p.cfg.DNSName,
		IPAddress:  p.cfg.IPAddress,
	}

	if err := util.WriteFileAtomic(configPath, []byte(ext.Render()), 0600); err != nil {
		return fmt.Errorf("failed to write signing configuration: %w", err)
	}

	log.Info().Msg("creating certificate signing request")
	if err := p.backend.CreateCSR(serviceKeyPath, passphrase, configPath, csrPath, ext); err != nil {
		return fmt.Errorf("failed to create certificate request: %w", err)
	}

	log.Info().Int("days", serviceValidityDays).Msg("signing service certificate")
	if err := p.backend.SignCSR(csrPath, caKeyPath, caCertPath, configPath, serviceCertPath, serviceValidityDays, ext); err != nil {
		return fmt.Errorf("failed to sign service certificate: %w", err)
	}

	log.Info().
		Str("ca_cert", caCertPath).
		Str("service_cert", serviceCertPath).
		Str("service_key", serviceKeyPath).
		Msg("TLS certificates provisioned")

	return nil
}

// generatePassphrase returns n cryptographically random bytes encoded as
// base64, trimmed of surrounding whitespace.
func generatePassphrase(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return strings.TrimSpace(base64.StdEncoding.EncodeToString(buf)), nil
}
