// Package config loads the TOML device/channel configuration file: which
// image files back which device addresses, and their geometry. Nothing
// under internal/disk, internal/drive, internal/ros, or internal/ctlunit
// imports this package; it is purely a cmd/ckdctl-level concern.
package config

import (
	"fmt"
	"strconv"

	"github.com/BurntSushi/toml"
)

// DeviceConfig describes one attached drive.
type DeviceConfig struct {
	Address    string `toml:"address"`     // e.g. "190"
	Path       string `toml:"path"`        // backing image file
	DeviceType string `toml:"device_type"` // "2311" or "2314"
	Heads      uint32 `toml:"heads"`
	Cylinders  uint16 `toml:"cylinders"`
	TrackSize  uint32 `toml:"track_size"`
	IPL        bool   `toml:"ipl"`
}

// Config is the top-level configuration document: one or more devices on
// one channel.
type Config struct {
	Channel string         `toml:"channel"`
	Devices []DeviceConfig `toml:"device"`
}

// DeviceTypeByte maps a configured device_type string to its on-disk
// DeviceType header byte.
func DeviceTypeByte(name string) (byte, error) {
	switch name {
	case "2311":
		return 0x11, nil
	case "2314":
		return 0x14, nil
	default:
		return 0, fmt.Errorf("config: unknown device_type %q", name)
	}
}

// ParseAddress parses a configured device address, accepting either decimal
// ("144") or 0x-prefixed hex ("0x90") as channel device addresses are
// conventionally written either way.
func ParseAddress(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("config: invalid device address %q: %w", s, err)
	}
	return byte(v), nil
}

// Load parses a TOML configuration file at path.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	for i, dev := range cfg.Devices {
		if dev.Path == "" {
			return Config{}, fmt.Errorf("config: device %d: path is required", i)
		}
		if _, err := DeviceTypeByte(dev.DeviceType); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
