package colourise

import (
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestApplyColour(t *testing.T) {
	a := ApplyColour("9c6b2")
	assert.Check(t, cmp.Equal(a, ApplyColour("9c6b2")), "colour must be stable")
	assert.Check(t, strings.HasSuffix(a, "9c6b2\033[0m"))
}

func TestErrorHighlight(t *testing.T) {
	assert.Check(t, cmp.Equal(ErrorHighlight("error"), "\033[1;37;41merror\033[0m"))
}
