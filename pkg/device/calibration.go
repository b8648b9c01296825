package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/gwillem/lerobot-dual/pkg/bus"
)

// CalibrationSet holds the calibration records of both arms, keyed by
// unified joint key ("right_joint0" .. "left_gripper"). It is
// replaced wholesale each time calibration runs, never merged.
type CalibrationSet map[string]bus.MotorCalibration

// Complete reports whether the set has a valid record for every joint
// of both sides.
func (s CalibrationSet) Complete() bool {
	for _, side := range Sides() {
		for _, joint := range bus.AllJoints() {
			mc, ok := s[side.Key(joint)]
			if !ok || !mc.Valid() {
				return false
			}
		}
	}
	return true
}

// SideRecords extracts one side's records under local joint keys, the
// only key space a physical bus understands.
func (s CalibrationSet) SideRecords(side Side) (map[bus.JointName]bus.MotorCalibration, error) {
	split, err := Split(map[string]bus.MotorCalibration(s))
	if err != nil {
		return nil, err
	}
	return split[side], nil
}

// Confirmer gates the operator-paced calibration steps. The CLI backs
// it with terminal prompts; tests drive it with a fake.
type Confirmer interface {
	// Confirm blocks until the operator acknowledges the prompt.
	Confirm(prompt string) error
	// Watch announces an operator-paced recording step. The returned
	// channel is closed when the operator signals completion; sample,
	// if non-nil, receives live readings for display.
	Watch(prompt string) (stop <-chan struct{}, sample func(map[bus.JointName]int), err error)
}

// Calibrator runs the two-phase calibration protocol across both
// arms, right then left, and assembles the unified record set.
//
// A failure at any step aborts the whole run: the caller gets no set,
// keeps whatever it had, and the device keeps reporting uncalibrated.
// Calibration is all-or-nothing across both sides.
type Calibrator struct {
	Confirm Confirmer
	Log     Logger
}

// Run drives every arm through torque release, half-turn homing and
// range recording, and returns the full record set for the device.
func (c *Calibrator) Run(ctx context.Context, name string, arms []ArmSlot) (CalibrationSet, error) {
	log := c.Log
	if log == nil {
		log = NopLogger()
	}
	log.Infof("running calibration of %s", name)

	set := make(CalibrationSet, 2*len(bus.AllJoints()))
	for _, arm := range arms {
		if err := c.calibrateArm(ctx, name, arm, set); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (c *Calibrator) calibrateArm(ctx context.Context, name string, arm ArmSlot, set CalibrationSet) error {
	side := strings.ToUpper(string(arm.Side))

	// The operator positions the arm by hand, so it must be
	// backdrivable, and offsets must be recorded in the same mode
	// used at runtime.
	if err := arm.Bus.DisableTorque(ctx); err != nil {
		return err
	}
	for _, joint := range bus.AllJoints() {
		if err := arm.Bus.WriteRegister(ctx, bus.RegOperatingMode, joint, bus.OperatingModePosition); err != nil {
			return err
		}
	}

	prompt := fmt.Sprintf("Move the %s arm of %s to the middle of its range of motion and press ENTER...", side, name)
	if err := c.Confirm.Confirm(prompt); err != nil {
		return fmt.Errorf("calibration aborted: %w", err)
	}
	homings, err := arm.Bus.SetHalfTurnHomings(ctx)
	if err != nil {
		return err
	}

	stop, sample, err := c.Confirm.Watch(fmt.Sprintf(
		"Move all joints of the %s arm sequentially through their entire ranges of motion.", side))
	if err != nil {
		return fmt.Errorf("calibration aborted: %w", err)
	}
	mins, maxes, err := arm.Bus.RecordRangesOfMotion(ctx, stop, sample)
	if err != nil {
		return err
	}

	motors := arm.Bus.Motors()
	for joint, m := range motors {
		set[arm.Side.Key(joint)] = bus.MotorCalibration{
			ID:           m.ID,
			DriveMode:    0,
			HomingOffset: homings[joint],
			RangeMin:     mins[joint],
			RangeMax:     maxes[joint],
		}
	}
	return nil
}
