// Package evidence produces the legal-grade output of an investigation:
// the wallet manifest, a STIX 2.1 bundle, the hashed evidence ZIP with
// its chain-of-custody record, and the on-demand LEA handoff package.
package evidence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// stixNamespace seeds deterministic object IDs: the same indicator
// value always yields the same STIX ID across runs, so bundles from
// repeat scans correlate.
var stixNamespace = uuid.MustParse("8c40d4a6-3f41-5bf0-9d2a-6e85f3c1a0b7")

const (
	stixSpecVersion = "2.1"
	toolName        = "scam-investigator"
)

// stixID derives the deterministic id for an object.
func stixID(objType, value string) string {
	return fmt.Sprintf("%s--%s", objType, uuid.NewSHA1(stixNamespace, []byte(objType+"--"+value)))
}

// stixObject is a loose STIX 2.1 SDO/SRO shape; marshalled as-is.
type stixObject map[string]interface{}

func baseObject(objType, value string, created time.Time) stixObject {
	ts := created.UTC().Format(time.RFC3339)
	return stixObject{
		"type":         objType,
		"spec_version": stixSpecVersion,
		"id":           stixID(objType, value),
		"created":      ts,
		"modified":     ts,
	}
}

// indicatorPattern renders the STIX pattern for a threat indicator.
func indicatorPattern(t models.IndicatorType, value string) string {
	switch t {
	case models.IndicatorIP, models.IndicatorIPv4:
		return fmt.Sprintf("[ipv4-addr:value = '%s']", value)
	case models.IndicatorIPv6:
		return fmt.Sprintf("[ipv6-addr:value = '%s']", value)
	case models.IndicatorDomain:
		return fmt.Sprintf("[domain-name:value = '%s']", value)
	case models.IndicatorEmail:
		return fmt.Sprintf("[email-addr:value = '%s']", value)
	case models.IndicatorURL:
		return fmt.Sprintf("[url:value = '%s']", value)
	case models.IndicatorCryptoWallet:
		return fmt.Sprintf("[cryptocurrency-wallet:address = '%s']", value)
	case models.IndicatorSHA256:
		return fmt.Sprintf("[file:hashes.'SHA-256' = '%s']", value)
	case models.IndicatorMD5:
		return fmt.Sprintf("[file:hashes.MD5 = '%s']", value)
	default:
		return fmt.Sprintf("[artifact:payload_bin = '%s']", value)
	}
}

// BuildSTIXBundle renders the investigation into a STIX 2.1 bundle.
// Wallet and threat indicators are de-duplicated by pattern value.
func BuildSTIXBundle(inv *models.Investigation) ([]byte, error) {
	now := time.Now().UTC()
	var objects []stixObject

	identity := baseObject("identity", toolName, now)
	identity["name"] = toolName
	identity["identity_class"] = "system"
	identityID := identity["id"].(string)
	objects = append(objects, identity)

	infra := baseObject("infrastructure", inv.TargetURL, now)
	infra["name"] = inv.TargetURL
	infra["infrastructure_types"] = []string{"hosting-malware", "phishing"}
	infraID := infra["id"].(string)
	objects = append(objects, infra)

	seen := map[string]bool{}
	addIndicator := func(name, pattern, value string) {
		if seen[pattern] {
			return
		}
		seen[pattern] = true

		ind := baseObject("indicator", value, now)
		ind["name"] = name
		ind["pattern"] = pattern
		ind["pattern_type"] = "stix"
		ind["valid_from"] = now.Format(time.RFC3339)
		ind["created_by_ref"] = identityID
		indID := ind["id"].(string)
		objects = append(objects, ind)

		rel := baseObject("relationship", indID+"|"+infraID, now)
		rel["relationship_type"] = "indicates"
		rel["source_ref"] = indID
		rel["target_ref"] = infraID
		objects = append(objects, rel)
	}

	for _, ti := range inv.Indicators {
		addIndicator(fmt.Sprintf("%s: %s", ti.Type, ti.Value), indicatorPattern(ti.Type, ti.Value), ti.Value)
	}
	for _, w := range inv.Wallets {
		name := fmt.Sprintf("Wallet %s (%s/%s)", w.WalletAddress, w.TokenSymbol, w.NetworkShort)
		addIndicator(name, indicatorPattern(models.IndicatorCryptoWallet, w.WalletAddress), w.WalletAddress)
	}

	for _, d := range inv.Downloads {
		if !d.Malicious {
			continue
		}
		mal := baseObject("malware", d.SHA256, now)
		mal["name"] = d.Filename
		mal["is_family"] = false
		mal["malware_types"] = []string{"unknown"}
		objects = append(objects, mal)
	}

	bundle := map[string]interface{}{
		"type":    "bundle",
		"id":      stixID("bundle", inv.ID),
		"objects": objects,
	}
	return json.MarshalIndent(bundle, "", "  ")
}
