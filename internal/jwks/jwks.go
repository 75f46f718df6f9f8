package jwks

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/rs/zerolog/log"

	"github.com/keymint/keymint/internal/util"
)

// Fixed artifact filenames.
const (
	SetFile        = "jwks.json"
	PrivateKeyFile = "jwks-private-key.pem"
)

// kidDelimiter joins the key components hashed into the key ID.
const kidDelimiter = ":"

// Result holds the outcome of a generation run. The private half never
// enters the distributable JWK Set; only PublicKey is serialized there.
type Result struct {
	KeyID      string
	PublicKey  jwk.Key
	PrivateKey jwk.Key
}

// Provisioner generates an ES256 signing key pair and exports the public
// half as a single-entry JWK Set and the private half as PKCS8 PEM.
type Provisioner struct {
	outputDir string
}

// NewProvisioner creates a JWK provisioner writing into outputDir.
func NewProvisioner(outputDir string) *Provisioner {
	return &Provisioner{outputDir: outputDir}
}

// Run generates a fresh P-256 key pair and writes the JWKS and private key
// artifacts. A new key pair is generated on every run; re-running
// overwrites the previous artifacts.
func (p *Provisioner) Run() (*Result, error) {
	log.Info().Str("output_dir", p.outputDir).Msg("provisioning JWK signing keys")

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	privJWK, err := jwk.FromRaw(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to export private JWK: %w", err)
	}

	pubJWK, err := jwk.FromRaw(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to export public JWK: %w", err)
	}

	kid, err := KeyID(pubJWK)
	if err != nil {
		return nil, fmt.Errorf("failed to compute key ID: %w", err)
	}

	// Both halves carry the same kid, alg and use so consumers can match
	// the private signing key to the published public key.
	for _, key := range []jwk.Key{pubJWK, privJWK} {
		if err := key.Set(jwk.KeyIDKey, kid); err != nil {
			return nil, fmt.Errorf("failed to set kid: %w", err)
		}
		if err := key.Set(jwk.AlgorithmKey, jwa.ES256); err != nil {
			return nil, fmt.Errorf("failed to set alg: %w", err)
		}
		if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
			return nil, fmt.Errorf("failed to set use: %w", err)
		}
	}

	set := jwk.NewSet()
	if err := set.AddKey(pubJWK); err != nil {
		return nil, fmt.Errorf("failed to build JWK set: %w", err)
	}

	setJSON, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JWK set: %w", err)
	}

	if err := util.WriteFileAtomic(filepath.Join(p.outputDir, SetFile), setJSON, 0600); err != nil {
		return nil, fmt.Errorf("failed to write JWK set: %w", err)
	}

	privateDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privateDER,
	})

	if err := util.WriteFileAtomic(filepath.Join(p.outputDir, PrivateKeyFile), privatePEM, 0600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}

	log.Info().
		Str("kid", kid).
		Str("jwks", filepath.Join(p.outputDir, SetFile)).
		Str("private_key", filepath.Join(p.outputDir, PrivateKeyFile)).
		Msg("JWK signing keys provisioned")

	return &Result{KeyID: kid, PublicKey: pubJWK, PrivateKey: privJWK}, nil
}

// KeyID derives a deterministic key ID from an EC public key: the key type,
// curve name and base64url-encoded coordinates are joined with a fixed
// delimiter, hashed with SHA-256 and encoded as unpadded URL-safe base64.
func KeyID(key jwk.Key) (string, error) {
	ec, ok := key.(jwk.ECDSAPublicKey)
	if !ok {
		return "", fmt.Errorf("key ID requires an EC public key, got %T", key)
	}

	return keyIDFromComponents(
		key.KeyType().String(),
		ec.Crv().String(),
		base64.RawURLEncoding.EncodeToString(ec.X()),
		base64.RawURLEncoding.EncodeToString(ec.Y()),
	), nil
}

func keyIDFromComponents(kty, crv, x, y string) string {
	material := strings.Join([]string{kty, crv, x, y}, kidDelimiter)
	sum := sha256.Sum256([]byte(material))

	return base64.RawURLEncoding.EncodeToString(sum[:])
}
