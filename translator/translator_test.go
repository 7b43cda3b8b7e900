package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultNameMapping(t *testing.T) {
	r := &Result{Names: map[string]string{
		"iTime":     "_uiTime",
		"iChannel0": "_uiChannel0",
		"values":    "_uvalues",
	}}

	assert.Equal(t, "_uiTime", r.Mapped("iTime"))
	assert.Equal(t, "_uvalues[0]", r.Mapped("values[0]"))
	assert.Equal(t, "unknown", r.Mapped("unknown"), "names the translator did not report pass through")

	assert.Equal(t, "iChannel0", r.Declared("_uiChannel0"))
	assert.Equal(t, "values[0]", r.Declared("_uvalues[0]"))
	assert.Equal(t, "gl_FragCoord", r.Declared("gl_FragCoord"))
}
