package sink

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleRoutesOutAndErrSeparately(t *testing.T) {
	var stdout, stderr strings.Builder
	c := NewConsole(&stdout, &stderr)

	c.Out("5")
	c.Err("boom")

	assert.Equal(t, "5\n", stdout.String())
	assert.Contains(t, stderr.String(), "error:")
	assert.Contains(t, stderr.String(), "boom")
}

func TestConsoleLoggerWritesToStderr(t *testing.T) {
	var stdout, stderr strings.Builder
	c := NewConsole(&stdout, &stderr)
	c.Logger().Print("worker started")
	assert.Contains(t, stderr.String(), "worker started")
}
