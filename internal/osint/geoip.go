package osint

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/rawblock/scam-investigator/pkg/models"
)

const defaultGeoIPEndpoint = "http://ip-api.com/json/"

// GeoIPAdapter maps the target's first A record to country/ASN data.
type GeoIPAdapter struct {
	client   *Client
	endpoint string
}

func (a *GeoIPAdapter) Name() string { return "geoip" }

func (a *GeoIPAdapter) Lookup(ctx context.Context, target string) (*models.OSINTResult, error) {
	domain := DomainOf(target)
	if err := a.client.wait(ctx, "geoip"); err != nil {
		return nil, err
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, domain)
	if err != nil || len(ips) == 0 {
		return nil, fmt.Errorf("geoip %s: no address to geolocate", domain)
	}
	ip := ips[0].IP.String()

	endpoint := a.endpoint
	if endpoint == "" {
		endpoint = defaultGeoIPEndpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		endpoint+ip+"?fields=status,country,countryCode,regionName,city,isp,org,as,asname", nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geoip %s: %w", ip, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Status      string `json:"status"`
		Country     string `json:"country"`
		CountryCode string `json:"countryCode"`
		RegionName  string `json:"regionName"`
		City        string `json:"city"`
		ISP         string `json:"isp"`
		Org         string `json:"org"`
		AS          string `json:"as"`
		ASName      string `json:"asname"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("geoip %s: decode: %w", ip, err)
	}
	if payload.Status != "success" {
		return nil, fmt.Errorf("geoip %s: provider returned %q", ip, payload.Status)
	}

	raw := map[string]interface{}{
		"ip":           ip,
		"country":      payload.Country,
		"country_code": payload.CountryCode,
		"region":       payload.RegionName,
		"city":         payload.City,
		"isp":          payload.ISP,
		"org":          payload.Org,
		"asn":          payload.AS,
		"asn_name":     payload.ASName,
	}

	summary := fmt.Sprintf("%s hosted in %s (%s, %s)", ip, payload.Country, payload.ISP, payload.AS)
	return newResult("geoip", summary, raw), nil
}
