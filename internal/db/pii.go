package db

import (
	"strings"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// piiKeywords maps categories to the substrings looked for in field
// names and labels. Order matters: more specific categories first so
// "card number" is financial, not id_number.
var piiKeywords = []struct {
	category models.PIICategory
	words    []string
}{
	{models.PIISSN, []string{"ssn", "social security", "social_security"}},
	{models.PIIFinancial, []string{"card", "cvv", "cvc", "iban", "routing", "bank", "account number", "account_number"}},
	{models.PIIIDNumber, []string{"passport", "license", "licence", "national id", "id number", "id_number", "identity"}},
	{models.PIIPassword, []string{"password", "passwd", "pwd"}},
	{models.PIIEmail, []string{"email", "e-mail"}},
	{models.PIIPhone, []string{"phone", "mobile", "tel"}},
	{models.PIIName, []string{"first name", "last name", "full name", "firstname", "lastname", "fullname", "surname", "nickname", "username"}},
	{models.PIIAddress, []string{"address", "street", "city", "state", "zip", "postal", "country"}},
}

// ClassifyPIIField maps a form field to a PII category. The HTML input
// type wins outright when it is unambiguous; otherwise the field name
// and label are keyword-matched.
func ClassifyPIIField(inputType, name, label string) models.PIICategory {
	switch strings.ToLower(strings.TrimSpace(inputType)) {
	case "password":
		return models.PIIPassword
	case "email":
		return models.PIIEmail
	case "tel":
		return models.PIIPhone
	}

	haystack := strings.ToLower(name + " " + label)
	for _, entry := range piiKeywords {
		for _, w := range entry.words {
			if strings.Contains(haystack, w) {
				return entry.category
			}
		}
	}
	return models.PIIOther
}
