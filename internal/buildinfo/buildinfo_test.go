package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextDefaults(t *testing.T) {
	t.Parallel()

	var c Context
	assert.Equal(t, "unknown", c.GetVersion())
	assert.Equal(t, "unknown", c.GetBuildDate())
	assert.Equal(t, "unknown (built unknown)", c.String())
}

func TestContextString(t *testing.T) {
	t.Parallel()

	c := Context{Version: "v1.2.0", BuildDate: "2026-01-01"}
	assert.Equal(t, "v1.2.0 (built 2026-01-01)", c.String())
}

func TestCurrentUsesInjectedValues(t *testing.T) {
	oldVersion, oldDate := version, buildDate
	t.Cleanup(func() { version, buildDate = oldVersion, oldDate })

	version, buildDate = "v9.9.9", "2026-10-01"
	assert.Equal(t, Context{Version: "v9.9.9", BuildDate: "2026-10-01"}, Current())
}
