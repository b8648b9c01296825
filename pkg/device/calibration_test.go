package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/lerobot-dual/pkg/bus"
)

func testArms(right, left *fakeBus) []ArmSlot {
	return []ArmSlot{
		{Side: SideRight, Bus: right},
		{Side: SideLeft, Bus: left},
	}
}

func TestCalibratorRun(t *testing.T) {
	right := newFakeBus()
	left := newFakeBus()
	for _, joint := range bus.AllJoints() {
		left.homings[joint] = -34
		left.mins[joint] = 200
		left.maxes[joint] = 3800
	}

	confirmer := &fakeConfirmer{}
	cal := &Calibrator{Confirm: confirmer}

	set, err := cal.Run(context.Background(), "dual_test", testArms(right, left))
	require.NoError(t, err)
	require.Len(t, set, 16)
	assert.True(t, set.Complete())

	rec := set["right_joint0"]
	assert.Equal(t, 1, rec.ID)
	assert.Equal(t, 0, rec.DriveMode)
	assert.Equal(t, 12, rec.HomingOffset)
	assert.Equal(t, 100, rec.RangeMin)
	assert.Equal(t, 4000, rec.RangeMax)

	rec = set["left_gripper"]
	assert.Equal(t, 8, rec.ID)
	assert.Equal(t, -34, rec.HomingOffset)
	assert.Equal(t, 200, rec.RangeMin)
	assert.Equal(t, 3800, rec.RangeMax)

	// Right side is prompted before the left side.
	require.Len(t, confirmer.prompts, 4)
	assert.Contains(t, confirmer.prompts[0], "RIGHT")
	assert.Contains(t, confirmer.prompts[2], "LEFT")

	// Torque released on both buses before positioning by hand.
	assert.GreaterOrEqual(t, right.torqueDisables, 1)
	assert.GreaterOrEqual(t, left.torqueDisables, 1)
}

func TestCalibratorAbortDiscardsEverything(t *testing.T) {
	right := newFakeBus()
	left := newFakeBus()

	// Abort at the third interaction: the left-side centering prompt,
	// after the right side completed.
	confirmer := &fakeConfirmer{failAt: 3}
	cal := &Calibrator{Confirm: confirmer}

	set, err := cal.Run(context.Background(), "dual_test", testArms(right, left))
	require.Error(t, err)
	assert.Nil(t, set)
}

func TestCalibrateAllOrNothing(t *testing.T) {
	right := newFakeBus()
	left := newFakeBus()
	right.connected = true
	left.connected = true

	var persisted []CalibrationSet
	confirmer := &fakeConfirmer{failAt: 3}
	coord, err := New(Config{
		Name:      "dual_test",
		RightBus:  right,
		LeftBus:   left,
		Confirmer: confirmer,
		Persist: func(set CalibrationSet) error {
			persisted = append(persisted, set)
			return nil
		},
	})
	require.NoError(t, err)

	// Interrupted after the right side: nothing may stick.
	err = coord.Calibrate(context.Background())
	require.Error(t, err)
	assert.False(t, coord.IsCalibrated())
	assert.Empty(t, coord.Calibration())
	assert.Zero(t, right.calWrites, "no per-side record set may be written on abort")
	assert.Empty(t, persisted)

	// A full run replaces state wholesale.
	confirmer.failAt = 0
	confirmer.prompts = nil
	require.NoError(t, coord.Calibrate(context.Background()))
	assert.True(t, coord.IsCalibrated())
	require.Len(t, coord.Calibration(), 16)
	assert.Equal(t, 1, right.calWrites)
	assert.Equal(t, 1, left.calWrites)
	require.Len(t, persisted, 1)
	assert.True(t, persisted[0].Complete())

	// Each bus only ever sees its own local keys.
	require.Len(t, right.calibration, 8)
	_, hasLocal := right.calibration[bus.Joint0]
	assert.True(t, hasLocal)
}

func TestCalibrationSetSideRecords(t *testing.T) {
	set := fullCalibration()

	local, err := set.SideRecords(SideLeft)
	require.NoError(t, err)
	require.Len(t, local, 8)
	assert.Equal(t, set["left_joint4"], local[bus.Joint4])
}

func TestCalibrationSetComplete(t *testing.T) {
	set := fullCalibration()
	assert.True(t, set.Complete())

	delete(set, "left_joint6")
	assert.False(t, set.Complete(), "a missing record must fail the whole device")

	set = fullCalibration()
	set["right_joint1"] = bus.MotorCalibration{ID: 2, RangeMin: 50, RangeMax: 10}
	assert.False(t, set.Complete(), "an inverted range must fail the whole device")
}
