package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetVersion(t *testing.T) {
	orig := version
	t.Cleanup(func() { version = orig })

	SetVersion("")
	assert.Equal(t, orig, version)

	SetVersion("v1.4.0")
	assert.Equal(t, "v1.4.0", Version())
}

func TestRevisionIsShort(t *testing.T) {
	rev := Revision()
	assert.LessOrEqual(t, len(rev), len("0123456789ab+dirty"))
}
