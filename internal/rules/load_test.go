package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/sentinel/internal/model"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
rules:
  - name: high_amount
    description: transaction above limit
    severity: critical
    conditions:
      - field: amount
        operator: ">"
        value: 10000
  - name: weird_severity
    severity: urgent
    conditions:
      - field: status
        operator: "="
        value: failed
  - name: ""
    conditions:
      - field: x
        operator: ">"
        value: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "high_amount", rules[0].Name)
	assert.Equal(t, model.SeverityCritical, rules[0].Severity)

	assert.Equal(t, "weird_severity", rules[1].Name)
	assert.Equal(t, model.SeverityMedium, rules[1].Severity, "unrecognized severity defaults to medium")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate_DropsRuleWithoutConditions(t *testing.T) {
	out := Validate([]model.Rule{{Name: "no_conditions"}})
	assert.Empty(t, out)
}
