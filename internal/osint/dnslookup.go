package osint

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// DNSAdapter resolves A, AAAA, MX, TXT, NS and CNAME records with the
// system resolver.
type DNSAdapter struct {
	client   *Client
	resolver *net.Resolver
}

func (a *DNSAdapter) Name() string { return "dns" }

func (a *DNSAdapter) Lookup(ctx context.Context, target string) (*models.OSINTResult, error) {
	domain := DomainOf(target)
	if err := a.client.wait(ctx, "dns"); err != nil {
		return nil, err
	}

	r := a.resolver
	if r == nil {
		r = net.DefaultResolver
	}

	raw := map[string]interface{}{}

	ips, err := r.LookupIPAddr(ctx, domain)
	if err != nil {
		if dnsErr, ok := err.(*net.DNSError); ok && dnsErr.IsNotFound {
			return nil, fmt.Errorf("domain %s does not resolve (NXDOMAIN)", domain)
		}
		return nil, fmt.Errorf("dns %s: %w", domain, err)
	}

	var a4, a6 []string
	for _, ip := range ips {
		if v4 := ip.IP.To4(); v4 != nil {
			a4 = append(a4, v4.String())
		} else {
			a6 = append(a6, ip.IP.String())
		}
	}
	raw["a"] = a4
	raw["aaaa"] = a6

	// Secondary records are best-effort; many scam domains have none.
	if mxs, err := r.LookupMX(ctx, domain); err == nil {
		var hosts []string
		for _, mx := range mxs {
			hosts = append(hosts, fmt.Sprintf("%s (%d)", strings.TrimSuffix(mx.Host, "."), mx.Pref))
		}
		raw["mx"] = hosts
	}
	if txts, err := r.LookupTXT(ctx, domain); err == nil {
		raw["txt"] = txts
	}
	if nss, err := r.LookupNS(ctx, domain); err == nil {
		var hosts []string
		for _, ns := range nss {
			hosts = append(hosts, strings.TrimSuffix(ns.Host, "."))
		}
		raw["ns"] = hosts
	}
	if cname, err := r.LookupCNAME(ctx, domain); err == nil && strings.TrimSuffix(cname, ".") != domain {
		raw["cname"] = strings.TrimSuffix(cname, ".")
	}

	summary := fmt.Sprintf("%d A, %d AAAA records", len(a4), len(a6))
	if len(a4) > 0 {
		summary += " first=" + a4[0]
	}
	return newResult("dns", summary, raw), nil
}

// ResolvesOrErr is the orchestrator's pre-flight gate: a cheap existence
// check before the heavier phases run.
func ResolvesOrErr(ctx context.Context, target string) error {
	domain := DomainOf(target)
	_, err := net.DefaultResolver.LookupIPAddr(ctx, domain)
	if err != nil {
		return fmt.Errorf("domain %s does not resolve: %w", domain, err)
	}
	return nil
}
