package models

// TaxonomyAxis names one of the five classification axes.
type TaxonomyAxis string

const (
	AxisIntent    TaxonomyAxis = "intent"
	AxisChannel   TaxonomyAxis = "channel"
	AxisTechnique TaxonomyAxis = "technique"
	AxisAction    TaxonomyAxis = "action"
	AxisPersona   TaxonomyAxis = "persona"
)

// AxisLabel is one ranked classification on a single axis.
type AxisLabel struct {
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation,omitempty"`
}

// TaxonomyResult is the five-axis fraud classification of a site.
type TaxonomyResult struct {
	Version   string      `json:"version"`
	Intent    []AxisLabel `json:"intent,omitempty"`
	Channel   []AxisLabel `json:"channel,omitempty"`
	Technique []AxisLabel `json:"technique,omitempty"`
	Action    []AxisLabel `json:"action,omitempty"`
	Persona   []AxisLabel `json:"persona,omitempty"`
	RiskScore float64     `json:"riskScore"`
	Summary   string      `json:"summary,omitempty"`
}
