package commands

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/keymint/keymint/internal/jwks"
	"github.com/keymint/keymint/internal/logger"
)

// JWKCmd generates an ES256 EC key pair for JWT signing, exported as a
// single-entry JWK Set plus a PKCS8 PEM private key.
type JWKCmd struct {
	OutputDir string `help:"Output directory for generated artifacts" env:"KEY_DIR" default:"keys"`
}

func (c *JWKCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)

	_, err := jwks.NewProvisioner(c.OutputDir).Run()

	return err
}
