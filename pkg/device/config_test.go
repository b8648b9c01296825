package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/lerobot-dual/pkg/bus"
)

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	step := 25.0
	cfg := &FileConfig{
		Leader: DeviceConfig{
			RightPort: "/dev/ttyACM0",
			LeftPort:  "/dev/ttyACM1",
		},
		Follower: DeviceConfig{
			RightPort:                 "/dev/ttyACM2",
			LeftPort:                  "/dev/ttyACM3",
			MaxRelativeTarget:         &step,
			DisableTorqueOnDisconnect: true,
			Calibration:               fullCalibration(),
		},
	}
	require.NoError(t, cfg.SaveTo(path))

	got, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.True(t, got.Follower.IsCalibrated())
	assert.False(t, got.Leader.IsCalibrated())
}

func TestConfigHasPorts(t *testing.T) {
	var d DeviceConfig
	assert.False(t, d.HasPorts())

	d.RightPort = "/dev/ttyACM0"
	assert.False(t, d.HasPorts(), "a single port is not a dual device")

	d.LeftPort = "/dev/ttyACM1"
	assert.True(t, d.HasPorts())
}

func TestConfigPartialCalibrationNotCalibrated(t *testing.T) {
	d := DeviceConfig{Calibration: fullCalibration()}
	delete(d.Calibration, "left_joint3")
	assert.False(t, d.IsCalibrated())
}

func TestConfigSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	first := &FileConfig{Leader: DeviceConfig{RightPort: "/dev/old"}}
	require.NoError(t, first.SaveTo(path))

	second := &FileConfig{
		Leader: DeviceConfig{RightPort: "/dev/new", LeftPort: "/dev/new2"},
		Follower: DeviceConfig{
			Calibration: CalibrationSet{
				"right_joint0": bus.MotorCalibration{ID: 1, RangeMin: 10, RangeMax: 20},
			},
		},
	}
	require.NoError(t, second.SaveTo(path))

	got, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	// The temp file is cleaned up after the rename.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.json", entries[0].Name())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
