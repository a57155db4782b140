package rules

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gridwatch/sentinel/internal/model"
)

// ruleFile is the on-disk shape of a rules yaml file.
type ruleFile struct {
	Rules []model.Rule `yaml:"rules"`
}

// LoadFile reads detection rules from a yaml file and validates them.
// Rules with an unrecognized severity are kept with severity defaulted to
// medium; rules without a name or without conditions are dropped.
func LoadFile(path string) ([]model.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrapf(err, "rules: parse %s", path)
	}

	return Validate(rf.Rules), nil
}

// Validate filters out malformed rules and normalizes severities.
func Validate(in []model.Rule) []model.Rule {
	var out []model.Rule
	for _, r := range in {
		if r.Name == "" || len(r.Conditions) == 0 {
			zap.L().Warn("rules: dropping malformed rule",
				zap.String("name", r.Name),
				zap.Int("conditions", len(r.Conditions)),
			)
			continue
		}
		if !r.Severity.Valid() {
			if r.Severity != "" {
				zap.L().Warn("rules: unrecognized severity, defaulting to medium",
					zap.String("rule", r.Name),
					zap.String("severity", string(r.Severity)),
				)
			}
			r.Severity = model.SeverityMedium
		}
		out = append(out, r)
	}
	return out
}
