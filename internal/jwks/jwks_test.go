package jwks

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvisionerRun(t *testing.T) {
	dir := t.TempDir()

	result, err := NewProvisioner(dir).Run()
	require.NoError(t, err)
	require.NotEmpty(t, result.KeyID)

	// the JWK set holds exactly one key, public fields only
	setJSON, err := os.ReadFile(filepath.Join(dir, SetFile))
	require.NoError(t, err)

	var set struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(setJSON, &set))
	require.Len(t, set.Keys, 1)

	entry := set.Keys[0]
	assert.NotContains(t, entry, "d", "JWKS must not contain private key material")
	assert.Equal(t, "EC", entry["kty"])
	assert.Equal(t, "P-256", entry["crv"])
	assert.Equal(t, "ES256", entry["alg"])
	assert.Equal(t, "sig", entry["use"])
	assert.Equal(t, result.KeyID, entry["kid"])

	for _, coord := range []string{"x", "y"} {
		raw, err := base64.RawURLEncoding.DecodeString(entry[coord].(string))
		require.NoError(t, err, coord)
		assert.Len(t, raw, 32, coord)
	}

	// the private key is PKCS8 PEM and matches the published public key
	keyPEM, err := os.ReadFile(filepath.Join(dir, PrivateKeyFile))
	require.NoError(t, err)

	block, _ := pem.Decode(keyPEM)
	require.NotNil(t, block)
	require.Equal(t, "PRIVATE KEY", block.Type)

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)

	privateKey, ok := parsed.(*ecdsa.PrivateKey)
	require.True(t, ok)

	var published ecdsa.PublicKey
	require.NoError(t, result.PublicKey.Raw(&published))
	assert.True(t, privateKey.PublicKey.Equal(&published))
}

func TestProvisionerRunBothHalvesAgree(t *testing.T) {
	result, err := NewProvisioner(t.TempDir()).Run()
	require.NoError(t, err)

	assert.Equal(t, result.KeyID, result.PublicKey.KeyID())
	assert.Equal(t, result.KeyID, result.PrivateKey.KeyID())
	assert.Equal(t, result.PublicKey.Algorithm(), result.PrivateKey.Algorithm())
	assert.Equal(t, "ES256", result.PublicKey.Algorithm().String())
	assert.Equal(t, "sig", result.PublicKey.KeyUsage())
	assert.Equal(t, "sig", result.PrivateKey.KeyUsage())
}

func TestProvisionerRunFreshKeyEachRun(t *testing.T) {
	dir := t.TempDir()

	first, err := NewProvisioner(dir).Run()
	require.NoError(t, err)

	second, err := NewProvisioner(dir).Run()
	require.NoError(t, err)

	assert.NotEqual(t, first.KeyID, second.KeyID)
}

func TestKeyIDDeterministic(t *testing.T) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	key, err := jwk.FromRaw(&privateKey.PublicKey)
	require.NoError(t, err)

	first, err := KeyID(key)
	require.NoError(t, err)

	second, err := KeyID(key)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestKeyIDComponentSensitivity(t *testing.T) {
	base := keyIDFromComponents("EC", "P-256", "xxxx", "yyyy")

	assert.NotEqual(t, base, keyIDFromComponents("RSA", "P-256", "xxxx", "yyyy"))
	assert.NotEqual(t, base, keyIDFromComponents("EC", "P-384", "xxxx", "yyyy"))
	assert.NotEqual(t, base, keyIDFromComponents("EC", "P-256", "XXXX", "yyyy"))
	assert.NotEqual(t, base, keyIDFromComponents("EC", "P-256", "xxxx", "YYYY"))
}

func TestKeyIDRejectsNonECKeys(t *testing.T) {
	key, err := jwk.FromRaw([]byte("oct-key-material"))
	require.NoError(t, err)

	_, err = KeyID(key)
	require.Error(t, err)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()

	result, err := NewProvisioner(dir).Run()
	require.NoError(t, err)

	// sign with the PEM private key
	keyPEM, err := os.ReadFile(filepath.Join(dir, PrivateKeyFile))
	require.NoError(t, err)

	block, _ := pem.Decode(keyPEM)
	require.NotNil(t, block)

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)
	privateKey := parsed.(*ecdsa.PrivateKey)

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"sub": "test",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = result.KeyID

	signed, err := token.SignedString(privateKey)
	require.NoError(t, err)

	// verify with the public key published in the JWKS
	setJSON, err := os.ReadFile(filepath.Join(dir, SetFile))
	require.NoError(t, err)

	set, err := jwk.Parse(setJSON)
	require.NoError(t, err)

	published, ok := set.LookupKeyID(result.KeyID)
	require.True(t, ok)

	var publicKey ecdsa.PublicKey
	require.NoError(t, published.Raw(&publicKey))

	verified, err := jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		return &publicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	require.NoError(t, err)
	assert.True(t, verified.Valid)

	kid, ok := verified.Header["kid"].(string)
	require.True(t, ok)
	assert.Equal(t, result.KeyID, kid)
}
