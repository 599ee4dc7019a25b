package patterns

import (
	"strings"
	"testing"
)

const sampleHAR = `{
  "log": {
    "entries": [
      {
        "request": {"method": "GET", "url": "https://scam.example/index.html"},
        "response": {"content": {"mimeType": "text/html", "text": "Deposit USDT: TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"}}
      },
      {
        "request": {"method": "GET", "url": "https://cdn.tracker.net/pixel.gif"},
        "response": {"content": {"mimeType": "image/gif", "text": ""}}
      },
      {
        "request": {"method": "POST", "url": "https://scam.example/gate.php",
          "postData": {"text": "email=a@b.c&password=hunter2&credit_card=4111111111111111"}},
        "response": {"content": {"mimeType": "application/json", "text": "{}"}}
      },
      {
        "request": {"method": "GET", "url": "https://scam.example/update.exe"},
        "response": {"content": {"mimeType": "application/x-msdownload", "text": ""}}
      },
      {
        "request": {"method": "GET", "url": "https://api.scam.example/balance"},
        "response": {"content": {"mimeType": "application/json", "text": "{}"}}
      }
    ]
  }
}`

func TestAnalyzeHAR(t *testing.T) {
	findings, err := AnalyzeHAR([]byte(sampleHAR), "scam.example")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if findings.TotalRequests != 5 {
		t.Fatalf("expected 5 requests, got %d", findings.TotalRequests)
	}

	// Subdomains of the target are not third-party.
	if len(findings.ThirdPartyDomains) != 1 || findings.ThirdPartyDomains[0] != "cdn.tracker.net" {
		t.Fatalf("third-party domains wrong: %v", findings.ThirdPartyDomains)
	}

	if len(findings.PhishingIndicators) != 1 || !strings.Contains(findings.PhishingIndicators[0], "gate.php") {
		t.Fatalf("phishing indicators wrong: %v", findings.PhishingIndicators)
	}

	// password + credit_card keywords both fire on the POST body.
	if len(findings.ExfilIndicators) < 2 {
		t.Fatalf("expected >=2 exfil indicators, got %v", findings.ExfilIndicators)
	}

	if len(findings.SuspiciousTypes) != 1 || !strings.Contains(findings.SuspiciousTypes[0], "x-msdownload") {
		t.Fatalf("suspicious types wrong: %v", findings.SuspiciousTypes)
	}

	if len(findings.CryptoAddresses) != 1 || findings.CryptoAddresses[0] != "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t" {
		t.Fatalf("crypto addresses wrong: %v", findings.CryptoAddresses)
	}
}

func TestAnalyzeHAR_MalformedInput(t *testing.T) {
	if _, err := AnalyzeHAR([]byte("not json"), "x.test"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestAnalyzeHAR_Deterministic(t *testing.T) {
	a, _ := AnalyzeHAR([]byte(sampleHAR), "scam.example")
	b, _ := AnalyzeHAR([]byte(sampleHAR), "scam.example")
	if len(a.CryptoAddresses) != len(b.CryptoAddresses) || a.TotalRequests != b.TotalRequests {
		t.Fatal("findings differ across runs")
	}
}
