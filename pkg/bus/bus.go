package bus

import "context"

// Register names understood by a Handle. The values are the driver's
// control-table names; position registers carry normalized values, all
// others raw integers.
const (
	RegPresentPosition  = "present_position"
	RegGoalPosition     = "goal_position"
	RegOperatingMode    = "operating_mode"
	RegTorqueEnable     = "torque_enable"
	RegHomingOffset     = "position_offset"
	RegMinPositionLimit = "min_angle_limit"
	RegMaxPositionLimit = "max_angle_limit"
	RegPCoefficient     = "p_gain"
	RegICoefficient     = "i_gain"
	RegDCoefficient     = "d_gain"
)

// OperatingModePosition is the servo position-control mode, the only
// mode this module runs motors in.
const OperatingModePosition = 0

// Runtime PID gains. P is lowered and D raised from the factory
// defaults to avoid shakiness.
const (
	DefaultPCoefficient = 16
	DefaultICoefficient = 0
	DefaultDCoefficient = 32
)

// Handle is one physical serial connection to the eight motors of a
// single arm. Implementations are not safe for concurrent use: every
// operation is a request/response transaction on one serial line and
// callers must serialize access externally.
type Handle interface {
	// Connect opens the serial port and prepares the motor group.
	Connect(ctx context.Context) error
	// Disconnect closes the port, optionally disabling torque first.
	Disconnect(ctx context.Context, disableTorque bool) error
	// IsConnected reports whether the port is open.
	IsConnected() bool
	// IsCalibrated reports whether a complete, valid calibration
	// record set is present for all motors.
	IsCalibrated() bool

	// Motors returns the static motor table for this arm.
	Motors() map[JointName]Motor

	// EnableTorque enables torque on all motors.
	EnableTorque(ctx context.Context) error
	// DisableTorque disables torque on all motors, making the arm
	// backdrivable.
	DisableTorque(ctx context.Context) error
	// WithTorqueDisabled runs fn with torque disabled on all motors
	// and re-enables torque on exit, even when fn fails.
	WithTorqueDisabled(ctx context.Context, fn func() error) error

	// WriteRegister writes a register on a single motor.
	WriteRegister(ctx context.Context, register string, joint JointName, value int) error
	// SyncRead reads a register from every motor in one transaction.
	SyncRead(ctx context.Context, register string) (map[JointName]float64, error)
	// SyncWrite writes a register on every listed motor in one
	// transaction.
	SyncWrite(ctx context.Context, register string, values map[JointName]float64) error

	// SetHalfTurnHomings zero-centers every motor's working range at
	// its current physical position and returns the offset recorded
	// per motor. The arm must be centered by hand first.
	SetHalfTurnHomings(ctx context.Context) (map[JointName]int, error)
	// RecordRangesOfMotion samples positions while the operator
	// sweeps the joints by hand, until stop is closed or ctx is
	// cancelled. sample, if non-nil, receives each reading.
	RecordRangesOfMotion(ctx context.Context, stop <-chan struct{}, sample func(map[JointName]int)) (mins, maxes map[JointName]int, err error)
	// WriteCalibration installs a full record set, replacing any
	// previous one, and writes the limits to the motors.
	WriteCalibration(ctx context.Context, cal map[JointName]MotorCalibration) error

	// ConfigureMotors applies the runtime motor configuration
	// (position mode, reduced PID gains) to every motor.
	ConfigureMotors(ctx context.Context) error
}
