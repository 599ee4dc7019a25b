package models

// IndicatorType is the IOC kind vocabulary.
type IndicatorType string

const (
	IndicatorIP           IndicatorType = "ip"
	IndicatorIPv4         IndicatorType = "ipv4"
	IndicatorIPv6         IndicatorType = "ipv6"
	IndicatorDomain       IndicatorType = "domain"
	IndicatorEmail        IndicatorType = "email"
	IndicatorURL          IndicatorType = "url"
	IndicatorCryptoWallet IndicatorType = "crypto_wallet"
	IndicatorSHA256       IndicatorType = "sha256"
	IndicatorMD5          IndicatorType = "md5"
	IndicatorPhone        IndicatorType = "phone"
)

// ThreatIndicator is a typed, attributable IOC extracted during an
// investigation.
type ThreatIndicator struct {
	Type    IndicatorType `json:"type"`
	Value   string        `json:"value"`
	Context string        `json:"context,omitempty"`
	Source  string        `json:"source,omitempty"`
}

// PIICategory is the semantic class of a harvesting form field.
type PIICategory string

const (
	PIIEmail     PIICategory = "email"
	PIIPassword  PIICategory = "password"
	PIIPhone     PIICategory = "phone"
	PIIName      PIICategory = "name"
	PIIAddress   PIICategory = "address"
	PIISSN       PIICategory = "ssn"
	PIIFinancial PIICategory = "financial"
	PIIIDNumber  PIICategory = "id_number"
	PIIOther     PIICategory = "other"
)

// PIIExposure records one form field observed on the target site that
// would harvest personal data if submitted.
type PIIExposure struct {
	Category   PIICategory `json:"category"`
	FieldLabel string      `json:"fieldLabel"`
	FormAction string      `json:"formAction,omitempty"`
	PageURL    string      `json:"pageUrl"`
	Required   bool        `json:"required"`
	Submitted  bool        `json:"submitted"`
}

// VirusTotalVerdict summarises a file-hash or URL report.
type VirusTotalVerdict struct {
	Found      bool   `json:"found"`
	Malicious  int    `json:"malicious"`
	Suspicious int    `json:"suspicious"`
	Harmless   int    `json:"harmless"`
	Undetected int    `json:"undetected"`
	Permalink  string `json:"permalink,omitempty"`
}

// DownloadArtifact is a file captured during active interaction.
type DownloadArtifact struct {
	SourceURL string             `json:"sourceUrl"`
	Filename  string             `json:"filename"`
	Path      string             `json:"path"`
	SHA256    string             `json:"sha256,omitempty"`
	MD5       string             `json:"md5,omitempty"`
	SizeBytes int64              `json:"sizeBytes"`
	MimeType  string             `json:"mimeType,omitempty"`
	VTVerdict *VirusTotalVerdict `json:"vtVerdict,omitempty"`
	Malicious bool               `json:"malicious"`
}
