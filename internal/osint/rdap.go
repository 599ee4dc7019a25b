package osint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// rdapBootstrap is the IANA aggregated RDAP endpoint; it redirects to the
// registry responsible for the queried TLD.
const rdapBootstrap = "https://rdap.org/domain/"

// RDAPAdapter resolves WHOIS-equivalent registration data over RDAP.
type RDAPAdapter struct {
	client *Client
}

func (a *RDAPAdapter) Name() string { return "whois" }

func (a *RDAPAdapter) Lookup(ctx context.Context, target string) (*models.OSINTResult, error) {
	domain := DomainOf(target)
	if err := a.client.wait(ctx, "rdap"); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rdapBootstrap+domain, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rdap+json")

	resp, err := a.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rdap %s: %w", domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return newResult("whois", fmt.Sprintf("no registration data for %s", domain), nil), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rdap %s: status %d", domain, resp.StatusCode)
	}

	var payload struct {
		Handle   string `json:"handle"`
		Events   []struct {
			Action string `json:"eventAction"`
			Date   string `json:"eventDate"`
		} `json:"events"`
		Entities []struct {
			Roles      []string        `json:"roles"`
			VCardArray json.RawMessage `json:"vcardArray"`
		} `json:"entities"`
		Nameservers []struct {
			LDHName string `json:"ldhName"`
		} `json:"nameservers"`
		Status []string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("rdap %s: decode: %w", domain, err)
	}

	raw := map[string]interface{}{
		"handle": payload.Handle,
		"status": payload.Status,
	}

	var registered, expires string
	for _, ev := range payload.Events {
		switch ev.Action {
		case "registration":
			registered = ev.Date
		case "expiration":
			expires = ev.Date
		}
	}
	raw["registered"] = registered
	raw["expires"] = expires

	var registrar string
	for _, ent := range payload.Entities {
		for _, role := range ent.Roles {
			if role == "registrar" {
				registrar = vcardName(ent.VCardArray)
			}
		}
	}
	raw["registrar"] = registrar

	var ns []string
	for _, n := range payload.Nameservers {
		ns = append(ns, n.LDHName)
	}
	raw["nameservers"] = ns

	summary := fmt.Sprintf("registrar=%s registered=%s expires=%s", registrar, registered, expires)
	return newResult("whois", summary, raw), nil
}

// vcardName digs the fn entry out of a jCard array. RDAP vcards are
// deeply nested JSON arrays, so this parses just enough.
func vcardName(rawCard json.RawMessage) string {
	var card []json.RawMessage
	if json.Unmarshal(rawCard, &card) != nil || len(card) < 2 {
		return ""
	}
	var entries [][]json.RawMessage
	if json.Unmarshal(card[1], &entries) != nil {
		return ""
	}
	for _, entry := range entries {
		if len(entry) < 4 {
			continue
		}
		var key string
		if json.Unmarshal(entry[0], &key) != nil || key != "fn" {
			continue
		}
		var val string
		if json.Unmarshal(entry[3], &val) == nil {
			return val
		}
	}
	return ""
}
