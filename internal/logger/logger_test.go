package logger

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/fanctl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, false, false, true)
	t.Cleanup(func() { SetLogLevel(WarnLevel) })

	Info().Msg("hidden")
	Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	InitWithWriter(&buf, true, false, true)
	Debug().Msg("debug visible")
	assert.Contains(t, buf.String(), "debug visible")
}

func TestErrorWithContext(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, false, true, true)
	t.Cleanup(func() { SetLogLevel(WarnLevel) })

	err := errors.New().New(errors.ErrTransport)
	Default().ErrorWithContext(err, "device", "read").Msg("link lost")

	out := buf.String()
	assert.Contains(t, out, "transport_failed")
	assert.Contains(t, out, "device")
	assert.Contains(t, out, "link lost")
}
