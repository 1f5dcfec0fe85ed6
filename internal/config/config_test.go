package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
channel = "c0"

[[device]]
address = "190"
path = "ckd0.img"
device_type = "2314"
heads = 20
cylinders = 200
track_size = 14568
ipl = true
`

func TestLoadParsesDevices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "c0", cfg.Channel)
	require.Len(t, cfg.Devices, 1)
	assert.Equal(t, "190", cfg.Devices[0].Address)
	assert.True(t, cfg.Devices[0].IPL)
}

func TestLoadRejectsUnknownDeviceType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	bad := `
[[device]]
address = "190"
path = "x.img"
device_type = "bogus"
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDeviceTypeByte(t *testing.T) {
	b, err := DeviceTypeByte("2311")
	require.NoError(t, err)
	assert.Equal(t, byte(0x11), b)

	_, err = DeviceTypeByte("9999")
	assert.Error(t, err)
}
