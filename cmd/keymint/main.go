package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/keymint/keymint/cmd/keymint/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		TLS     commands.TLSCmd `cmd:"" name:"tls" help:"Generate a CA and mTLS service certificate"`
		JWK     commands.JWKCmd `cmd:"" name:"jwk" help:"Generate an ES256 JWK signing key pair"`
		All     commands.AllCmd `cmd:"" default:"withargs" help:"Generate TLS certificates and JWK signing keys"`
		Debug   bool            `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
