package osint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// TLSAdapter pulls the leaf certificate presented on port 443.
type TLSAdapter struct {
	client *Client
}

func (a *TLSAdapter) Name() string { return "tls" }

func (a *TLSAdapter) Lookup(ctx context.Context, target string) (*models.OSINTResult, error) {
	domain := DomainOf(target)
	if err := a.client.wait(ctx, "tls"); err != nil {
		return nil, err
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: DefaultTimeout},
		Config: &tls.Config{
			ServerName: domain,
			// Scam sites frequently present self-signed or expired
			// certs; we want to observe them, not reject the handshake.
			InsecureSkipVerify: true,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(domain, "443"))
	if err != nil {
		return nil, fmt.Errorf("tls %s: %w", domain, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, fmt.Errorf("tls %s: no peer certificate", domain)
	}
	leaf := state.PeerCertificates[0]

	selfSigned := leaf.Subject.String() == leaf.Issuer.String()
	now := time.Now()
	expired := now.After(leaf.NotAfter) || now.Before(leaf.NotBefore)

	raw := map[string]interface{}{
		"subject":     leaf.Subject.String(),
		"issuer":      leaf.Issuer.String(),
		"not_before":  leaf.NotBefore.UTC().Format(time.RFC3339),
		"not_after":   leaf.NotAfter.UTC().Format(time.RFC3339),
		"san":         leaf.DNSNames,
		"self_signed": selfSigned,
		"expired":     expired,
	}

	summary := fmt.Sprintf("issuer=%q valid until %s", leaf.Issuer.CommonName, leaf.NotAfter.UTC().Format("2006-01-02"))
	if selfSigned {
		summary += " (self-signed)"
	}
	if expired {
		summary += " (outside validity window)"
	}
	return newResult("tls", summary, raw), nil
}
