package dominspect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rawblock/scam-investigator/internal/db"
	"github.com/rawblock/scam-investigator/internal/wallet"
	"github.com/rawblock/scam-investigator/pkg/models"
)

// StaticForm is one data-collecting form found in captured HTML.
type StaticForm struct {
	Action string               `json:"action"`
	Method string               `json:"method"`
	Fields []models.PIIExposure `json:"fields,omitempty"`
}

// StaticAnalysis is the offline pass over a captured DOM snapshot. It
// runs without a live browser, so evidence keeps yielding findings
// after the site goes down.
type StaticAnalysis struct {
	PageURL string         `json:"pageUrl"`
	Forms   []StaticForm   `json:"forms,omitempty"`
	Wallets []wallet.Match `json:"wallets,omitempty"`
}

// PIIExposures flattens the form fields.
func (a *StaticAnalysis) PIIExposures() []models.PIIExposure {
	var out []models.PIIExposure
	for _, f := range a.Forms {
		out = append(out, f.Fields...)
	}
	return out
}

// Attributes scam pages commonly stash deposit addresses in.
var addressAttrs = []string{"data-clipboard-text", "data-address", "value", "title"}

// AnalyzeHTML parses a captured DOM snapshot: forms and their PII
// fields, plus wallet addresses embedded in text or copy-button
// attributes.
func AnalyzeHTML(htmlContent, pageURL string) (*StaticAnalysis, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	analysis := &StaticAnalysis{PageURL: pageURL}

	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		action, _ := s.Attr("action")
		method, _ := s.Attr("method")
		if method == "" {
			method = "GET"
		}
		form := StaticForm{Action: action, Method: strings.ToUpper(method)}

		s.Find("input, select, textarea").Each(func(_ int, field *goquery.Selection) {
			fieldType, _ := field.Attr("type")
			switch fieldType {
			case "hidden", "submit", "button", "checkbox", "radio":
				return
			}
			name, _ := field.Attr("name")
			label := fieldLabel(doc, field)
			if name == "" && label == "" {
				return
			}

			_, required := field.Attr("required")
			form.Fields = append(form.Fields, models.PIIExposure{
				Category:   db.ClassifyPIIField(fieldType, name, label),
				FieldLabel: firstNonEmpty(label, name),
				FormAction: action,
				PageURL:    pageURL,
				Required:   required,
			})
		})

		if len(form.Fields) > 0 {
			analysis.Forms = append(analysis.Forms, form)
		}
	})

	analysis.Wallets = scanForAddresses(doc)
	return analysis, nil
}

// fieldLabel resolves the human-visible label: <label for=...>, an
// enclosing <label>, or the placeholder.
func fieldLabel(doc *goquery.Document, field *goquery.Selection) string {
	if id, ok := field.Attr("id"); ok && id != "" {
		if label := doc.Find("label[for=" + quoteCSSValue(id) + "]"); label.Length() > 0 {
			return strings.TrimSpace(label.First().Text())
		}
	}
	if parent := field.ParentsFiltered("label"); parent.Length() > 0 {
		return strings.TrimSpace(parent.First().Clone().ChildrenFiltered("input, select, textarea").Remove().End().Text())
	}
	placeholder, _ := field.Attr("placeholder")
	return strings.TrimSpace(placeholder)
}

func quoteCSSValue(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, ``) + `"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// scanForAddresses runs the chain validator over page text and the
// attributes copy buttons use, deduplicating by address.
func scanForAddresses(doc *goquery.Document) []wallet.Match {
	v := wallet.NewValidator()

	var corpus strings.Builder
	corpus.WriteString(doc.Text())
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range addressAttrs {
			if val, ok := s.Attr(attr); ok && val != "" {
				corpus.WriteString(" ")
				corpus.WriteString(val)
			}
		}
	})

	matches := v.ScanText(corpus.String())
	seen := make(map[string]bool, len(matches))
	out := matches[:0]
	for _, m := range matches {
		if seen[m.Address] {
			continue
		}
		seen[m.Address] = true
		out = append(out, m)
	}
	return out
}
