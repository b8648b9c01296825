package device

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const DefaultConfigFile = "lerobot-dual.json"

// FileConfig is the on-disk configuration for the teleoperation pair.
type FileConfig struct {
	Leader   DeviceConfig `json:"leader"`
	Follower DeviceConfig `json:"follower"`
}

// DeviceConfig holds one device's ports and persisted calibration.
type DeviceConfig struct {
	RightPort  string `json:"right_port"`
	LeftPort   string `json:"left_port"`
	UseDegrees bool   `json:"use_degrees,omitempty"`

	MaxRelativeTarget         *float64 `json:"max_relative_target,omitempty"`
	DisableTorqueOnDisconnect bool     `json:"disable_torque_on_disconnect,omitempty"`

	Calibration CalibrationSet `json:"calibration,omitempty"`
}

// HasPorts reports whether both arm ports are configured.
func (d *DeviceConfig) HasPorts() bool {
	return d.RightPort != "" && d.LeftPort != ""
}

// IsCalibrated reports whether a complete record set is persisted.
func (d *DeviceConfig) IsCalibrated() bool {
	return d.Calibration.Complete()
}

// LoadConfig loads configuration from the default config file.
func LoadConfig() (*FileConfig, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file.
func LoadConfigFrom(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save saves configuration to the default config file.
func (c *FileConfig) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo writes the configuration atomically: calibration record sets
// must land on disk as one unit, never half of a device's arms.
func (c *FileConfig) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// ConfigExists returns true if the default config file exists.
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
