package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteVarsReplacesSingleAndDoubleBraces(t *testing.T) {
	row := map[string]string{"name": "Alice", "company": "Acme"}

	out := SubstituteVars("Hi {name}, welcome to {{company}}!", row)
	assert.Equal(t, "Hi Alice, welcome to Acme!", out)
}

func TestSubstituteVarsIsCaseInsensitive(t *testing.T) {
	row := map[string]string{"Name": "Alice"}

	out := SubstituteVars("Hi {NAME} and {{name}}", row)
	assert.Equal(t, "Hi Alice and Alice", out)
}

func TestSubstituteVarsLeavesUnknownPlaceholders(t *testing.T) {
	row := map[string]string{"name": "Alice"}

	out := SubstituteVars("Hi {name}, your code is {code}", row)
	assert.Equal(t, "Hi Alice, your code is {code}", out)
}

func TestSubstituteVarsDoubleBracesLeaveNoResidue(t *testing.T) {
	row := map[string]string{"name": "Alice"}

	out := SubstituteVars("{{name}}", row)
	assert.Equal(t, "Alice", out)
	assert.NotContains(t, out, "{")
}

func TestSubstituteVarsSinglePass(t *testing.T) {
	// A value shaped like its own placeholder must survive unchanged
	row := map[string]string{"name": "{name}"}

	out := SubstituteVars("Hi {name}", row)
	assert.Equal(t, "Hi {name}", out)
}

func TestSubstituteVarsReplacesEveryOccurrence(t *testing.T) {
	row := map[string]string{"name": "Alice"}

	out := SubstituteVars("{name} {name} {{name}}", row)
	assert.Equal(t, "Alice Alice Alice", out)
}

func TestSubstituteVarsEmptyRow(t *testing.T) {
	out := SubstituteVars("Hi {name}", nil)
	assert.Equal(t, "Hi {name}", out)
}

func TestSubstituteVarsRegexMetacharsInKey(t *testing.T) {
	row := map[string]string{"a.b": "x"}

	assert.Equal(t, "x", SubstituteVars("{a.b}", row))
	assert.Equal(t, "{acb}", SubstituteVars("{acb}", row))
}
