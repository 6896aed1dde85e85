package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openharmony/security-deviceauth/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := config.Load([]byte(`localUdid: device-1`))
	require.NoError(t, err)
	require.Equal(t, "device-1", c.LocalUDID)
	require.Equal(t, "info", c.Logger.Level)
	require.Equal(t, "text", c.Logger.Format)
	require.Equal(t, 64, c.Queue.Depth)
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	c, err := config.Load([]byte(`
localUdid: device-1
storage:
  path: /var/lib/devauthd/trust.tlv
logger:
  level: debug
  format: json
queue:
  depth: 128
`))
	require.NoError(t, err)
	require.Equal(t, "/var/lib/devauthd/trust.tlv", c.Storage.Path)
	require.Equal(t, "debug", c.Logger.Level)
	require.Equal(t, "json", c.Logger.Format)
	require.Equal(t, 128, c.Queue.Depth)
}

func TestLoadRejectsMissingLocalUDID(t *testing.T) {
	_, err := config.Load([]byte(`logger:
  level: info
`))
	require.Error(t, err)
}

func TestLoadRejectsBadLoggerLevel(t *testing.T) {
	_, err := config.Load([]byte(`
localUdid: device-1
logger:
  level: verbose
`))
	require.Error(t, err)
}

func TestLoadRejectsNegativeQueueDepth(t *testing.T) {
	_, err := config.Load([]byte(`
localUdid: device-1
queue:
  depth: -1
`))
	require.Error(t, err)
}
