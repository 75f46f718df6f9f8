package commands

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/keymint/keymint/internal/logger"
	"github.com/keymint/keymint/internal/pki"
)

// TLSCmd generates a self-signed CA plus a service certificate/key pair for
// mutual TLS.
type TLSCmd struct {
	OutputDir  string `help:"Output directory for generated artifacts" env:"KEY_DIR" default:"keys"`
	CommonName string `help:"Service certificate common name and primary SAN entry" env:"CN" default:"internal-service"`
	DNSName    string `help:"Secondary DNS subject alternative name" env:"SAN_DNS" default:"localhost"`
	IPAddress  string `help:"IP subject alternative name" env:"SAN_IP" default:"127.0.0.1"`
	Backend    string `help:"Certificate backend" env:"KEYMINT_BACKEND" enum:"openssl,native" default:"openssl"`
}

func (c *TLSCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)

	backend, err := pki.NewBackend(c.Backend)
	if err != nil {
		return err
	}

	provisioner := pki.NewProvisioner(backend, pki.Config{
		OutputDir:  c.OutputDir,
		CommonName: c.CommonName,
		DNSName:    c.DNSName,
		IPAddress:  c.IPAddress,
	})

	return provisioner.Run()
}
