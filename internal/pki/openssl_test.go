package pki

import (
	"encoding/pem"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireOpenSSL(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("openssl"); err != nil {
		t.Skip("openssl not available on PATH")
	}
}

func TestOpenSSLProvisionerRun(t *testing.T) {
	requireOpenSSL(t)

	dir := t.TempDir()
	cfg := Config{
		OutputDir:  dir,
		CommonName: "svc.internal",
		DNSName:    "svc.local",
		IPAddress:  "10.0.0.5",
	}

	backend, err := NewOpenSSLBackend()
	require.NoError(t, err)

	provisioner := NewProvisioner(backend, cfg)
	require.NoError(t, provisioner.Run())

	assertTLSArtifacts(t, dir, cfg)
	assertOpenSSLEncryptedServiceKey(t, dir)
}

// assertOpenSSLEncryptedServiceKey verifies the openssl-generated key
// through the toolchain itself, since openssl 3 emits encrypted PKCS#8
// rather than the traditional DEK-Info encoding.
func assertOpenSSLEncryptedServiceKey(t *testing.T, dir string) {
	t.Helper()

	keyPath := filepath.Join(dir, ServiceKeyFile)
	certPath := filepath.Join(dir, ServiceCertFile)

	passphrase, err := os.ReadFile(filepath.Join(dir, PassphraseFile))
	require.NoError(t, err)

	keyPEM, err := os.ReadFile(keyPath)
	require.NoError(t, err)

	block, _ := pem.Decode(keyPEM)
	require.NotNil(t, block)
	assert.Contains(t, []string{"ENCRYPTED PRIVATE KEY", "RSA PRIVATE KEY"}, block.Type)

	// key decrypts with the stored passphrase and its modulus matches the
	// certificate's
	keyModulus, err := exec.Command("openssl", "rsa",
		"-in", keyPath,
		"-passin", "pass:"+string(passphrase),
		"-noout", "-modulus").Output()
	require.NoError(t, err)

	certModulus, err := exec.Command("openssl", "x509",
		"-in", certPath,
		"-noout", "-modulus").Output()
	require.NoError(t, err)

	assert.Equal(t, string(certModulus), string(keyModulus))

	// a wrong passphrase must be rejected
	err = exec.Command("openssl", "rsa",
		"-in", keyPath,
		"-passin", "pass:wrong-passphrase",
		"-noout").Run()
	require.Error(t, err)
}

func TestNewOpenSSLBackendMissingToolchain(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := NewOpenSSLBackend()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolchainMissing))
}

func TestNewBackend(t *testing.T) {
	backend, err := NewBackend("native")
	require.NoError(t, err)
	require.IsType(t, &NativeBackend{}, backend)

	_, err = NewBackend("bogus")
	require.Error(t, err)
}
