// Package patterns holds the static IOC pattern sets shared by the HAR
// analyzer and the text scanners.
package patterns

import "regexp"

// PhishingKitURLPatterns flag request paths typical of deployed phishing
// kits and their admin panels.
var PhishingKitURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/wp-admin/`),
	regexp.MustCompile(`(?i)panel\.php`),
	regexp.MustCompile(`(?i)gate\.php`),
	regexp.MustCompile(`(?i)antibot`),
	regexp.MustCompile(`(?i)/admin/login\.php`),
	regexp.MustCompile(`(?i)telegram.*bot.*send`),
	regexp.MustCompile(`(?i)result\.php`),
	regexp.MustCompile(`(?i)/includes/config\.php`),
}

// ExfilKeywordPatterns flag credential and financial-data keys inside
// POST bodies.
var ExfilKeywordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)password|passwd`),
	regexp.MustCompile(`(?i)credit.?card`),
	regexp.MustCompile(`(?i)card.?number`),
	regexp.MustCompile(`(?i)cvv|cvc`),
	regexp.MustCompile(`(?i)ssn|social.?security`),
	regexp.MustCompile(`(?i)bank.?account`),
	regexp.MustCompile(`(?i)routing.?num`),
	regexp.MustCompile(`(?i)seed.?phrase|mnemonic`),
}

// SuspiciousContentTypes are response MIME types that indicate an
// executable or dropper being served.
var SuspiciousContentTypes = []string{
	"application/x-msdownload",
	"application/x-executable",
	"application/x-msdos-program",
	"application/java-archive",
	"application/hta",
	"application/x-sh",
	"application/vnd.microsoft.portable-executable",
	"application/x-apple-diskimage",
}

// textLikeContentTypes gates which response bodies are worth scanning.
var textLikeContentTypes = []string{
	"text/",
	"application/json",
	"application/javascript",
	"application/x-javascript",
	"application/xml",
	"application/x-www-form-urlencoded",
}
