package log

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLogrusLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.Out = &buf
	base.SetLevel(logrus.DebugLevel)

	l := NewLogrusLogger(base)
	l.Debug("debug line")
	l.Infof("info %d", 1)
	l.Warn("warn line")
	l.Error("error line")

	out := buf.String()
	require.Contains(t, out, "debug line")
	require.Contains(t, out, "info 1")
	require.Contains(t, out, "warn line")
	require.Contains(t, out, "error line")
}
