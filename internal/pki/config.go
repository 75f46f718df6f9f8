package pki

import (
	"fmt"
	"net"
	"strings"
)

// ExtensionConfig describes the extensions applied to the service
// certificate: no CA capability, digital signature and key encipherment
// usage, server and client extended usage, and a subject alternative name
// list of [common name, DNS name, IP address].
//
// The common name is duplicated as the first DNS entry because strict TLS
// clients ignore the deprecated subject CN field for hostname matching.
type ExtensionConfig struct {
	CommonName string
	DNSName    string
	IPAddress  string
}

// DNSNames returns the DNS entries of the SAN list in order.
func (e ExtensionConfig) DNSNames() []string {
	return []string{e.CommonName, e.DNSName}
}

// IPAddresses returns the IP entries of the SAN list.
func (e ExtensionConfig) IPAddresses() ([]net.IP, error) {
	ip := net.ParseIP(e.IPAddress)
	if ip == nil {
		return nil, fmt.Errorf("invalid IP address %q", e.IPAddress)
	}
	return []net.IP{ip}, nil
}

// Render produces the openssl configuration document declaring the
// extension set. The same document serves as the request configuration for
// CSR creation and as the extension file for CSR signing, and is written to
// the output directory as part of the artifact contract.
func (e ExtensionConfig) Render() string {
	var b strings.Builder

	b.WriteString("[req]\n")
	b.WriteString("prompt = no\n")
	b.WriteString("distinguished_name = req_distinguished_name\n")
	b.WriteString("req_extensions = v3_ext\n")
	b.WriteString("\n")
	b.WriteString("[req_distinguished_name]\n")
	fmt.Fprintf(&b, "CN = %s\n", e.CommonName)
	b.WriteString("\n")
	b.WriteString("[v3_ext]\n")
	b.WriteString("basicConstraints = CA:FALSE\n")
	b.WriteString("keyUsage = digitalSignature, keyEncipherment\n")
	b.WriteString("extendedKeyUsage = serverAuth, clientAuth\n")
	b.WriteString("subjectAltName = @alt_names\n")
	b.WriteString("\n")
	b.WriteString("[alt_names]\n")
	fmt.Fprintf(&b, "DNS.1 = %s\n", e.CommonName)
	fmt.Fprintf(&b, "DNS.2 = %s\n", e.DNSName)
	fmt.Fprintf(&b, "IP.1 = %s\n", e.IPAddress)

	return b.String()
}
