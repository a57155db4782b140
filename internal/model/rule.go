package model

// Condition is a single field comparison within a detection rule.
type Condition struct {
	Field    string `json:"field" yaml:"field" mapstructure:"field"`
	Operator string `json:"operator" yaml:"operator" mapstructure:"operator"`
	Value    any    `json:"value" yaml:"value" mapstructure:"value"`
}

// Rule is a declarative business rule. A rule fires only when every
// condition holds against the record (logical AND). Rules are immutable at
// run time.
type Rule struct {
	Name        string      `json:"name" yaml:"name" mapstructure:"name"`
	Description string      `json:"description" yaml:"description" mapstructure:"description"`
	Severity    Severity    `json:"severity" yaml:"severity" mapstructure:"severity"`
	Conditions  []Condition `json:"conditions" yaml:"conditions" mapstructure:"conditions"`
}

// EffectiveSeverity returns the rule's declared severity, defaulting to
// medium when absent or unrecognized.
func (r Rule) EffectiveSeverity() Severity {
	if r.Severity.Valid() {
		return r.Severity
	}
	return SeverityMedium
}
