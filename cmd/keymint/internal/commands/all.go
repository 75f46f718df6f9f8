package commands

import (
	"context"
)

// AllCmd runs both provisioners in sequence: TLS certificates first, then
// the JWK signing key pair. This is the default command when keymint is
// invoked with no arguments.
type AllCmd struct {
	TLSCmd
}

func (c *AllCmd) Run(ctx context.Context, globals *Globals) error {
	if err := c.TLSCmd.Run(ctx, globals); err != nil {
		return err
	}

	jwkCmd := JWKCmd{OutputDir: c.OutputDir}

	return jwkCmd.Run(ctx, globals)
}
