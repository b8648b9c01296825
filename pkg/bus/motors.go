// Package bus provides access to one serial bus of Feetech servos,
// the eight motors of a single SO-101 arm.
package bus

import "math"

// JointName identifies a motor on one arm.
type JointName string

// Joint names for one SO-101 arm. IDs 1-7 are body joints, ID 8 is
// the gripper.
const (
	Joint0  JointName = "joint0"
	Joint1  JointName = "joint1"
	Joint2  JointName = "joint2"
	Joint3  JointName = "joint3"
	Joint4  JointName = "joint4"
	Joint5  JointName = "joint5"
	Joint6  JointName = "joint6"
	Gripper JointName = "gripper"
)

// AllJoints returns all joint names in order (matching servo IDs 1-8).
func AllJoints() []JointName {
	return []JointName{
		Joint0,
		Joint1,
		Joint2,
		Joint3,
		Joint4,
		Joint5,
		Joint6,
		Gripper,
	}
}

// NormMode selects how raw servo positions map to user-facing values.
type NormMode int

const (
	// NormModeRangeM100 maps the calibrated range to [-100, 100].
	NormModeRangeM100 NormMode = iota
	// NormModeRange100 maps the calibrated range to [0, 100].
	NormModeRange100
	// NormModeDegrees maps positions to degrees around the range center.
	NormModeDegrees
)

// STS3215 is the servo model used on every SO-101 joint.
const STS3215 = "sts3215"

// Encoder resolution of the STS3215 (12-bit).
const (
	maxResolution = 4095
	halfTurn      = 2047
)

// Motor is the static identity of one servo slot: its bus ID, model
// and normalization mode. Never mutated after construction.
type Motor struct {
	ID       int
	Model    string
	NormMode NormMode
}

// ArmMotors returns the fixed motor table for one arm. Body joints use
// degrees when useDegrees is set, [-100, 100] otherwise; the gripper is
// always [0, 100].
func ArmMotors(useDegrees bool) map[JointName]Motor {
	body := NormModeRangeM100
	if useDegrees {
		body = NormModeDegrees
	}
	motors := make(map[JointName]Motor, 8)
	for i, name := range AllJoints() {
		mode := body
		if name == Gripper {
			mode = NormModeRange100
		}
		motors[name] = Motor{ID: i + 1, Model: STS3215, NormMode: mode}
	}
	return motors
}

// MotorCalibration holds calibration data for a single motor.
type MotorCalibration struct {
	ID           int `json:"id"`
	DriveMode    int `json:"drive_mode"`
	HomingOffset int `json:"homing_offset"`
	RangeMin     int `json:"range_min"`
	RangeMax     int `json:"range_max"`
}

// Valid reports whether the record can be used for normalization.
func (c MotorCalibration) Valid() bool {
	return c.ID > 0 && c.RangeMin <= c.RangeMax
}

// Normalize converts a raw servo position to the motor's user-facing
// range.
func (c MotorCalibration) Normalize(raw int, mode NormMode) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	switch mode {
	case NormModeRange100:
		if rangeSize == 0 {
			return 0
		}
		return clampf(float64(raw-c.RangeMin)/rangeSize*100, 0, 100)
	case NormModeDegrees:
		center := float64(c.RangeMin+c.RangeMax) / 2
		return (float64(raw) - center) * 360 / maxResolution
	default:
		if rangeSize == 0 {
			return 0
		}
		return clampf((float64(raw-c.RangeMin)/rangeSize)*200-100, -100, 100)
	}
}

// Denormalize converts a user-facing value back to a raw servo
// position, clamped to the calibrated range.
func (c MotorCalibration) Denormalize(norm float64, mode NormMode) int {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	var raw int
	switch mode {
	case NormModeRange100:
		raw = int(math.Round(norm/100*rangeSize)) + c.RangeMin
	case NormModeDegrees:
		center := float64(c.RangeMin+c.RangeMax) / 2
		raw = int(math.Round(norm*maxResolution/360 + center))
	default:
		raw = int(math.Round((norm+100)/200*rangeSize)) + c.RangeMin
	}
	if raw < c.RangeMin {
		raw = c.RangeMin
	}
	if raw > c.RangeMax {
		raw = c.RangeMax
	}
	return raw
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
