package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// FeetechConfig configures a Feetech bus handle.
type FeetechConfig struct {
	Port       string
	BaudRate   int           // defaults to 1_000_000
	Timeout    time.Duration // per-transaction, defaults to 100ms
	UseDegrees bool          // body joints in degrees instead of [-100, 100]
}

// Feetech is a Handle over one Feetech serial bus, built on the
// feetech-servo driver. It owns the eight-motor table of a single arm.
type Feetech struct {
	cfg    FeetechConfig
	motors map[JointName]Motor
	byID   map[int]JointName

	bus         *feetech.Bus
	group       *feetech.ServoGroup
	servos      map[JointName]*feetech.Servo
	calibration map[JointName]MotorCalibration
}

// NewFeetech creates a disconnected handle. cal may be nil when the
// arm has not been calibrated yet.
func NewFeetech(cfg FeetechConfig, cal map[JointName]MotorCalibration) *Feetech {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 1_000_000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	motors := ArmMotors(cfg.UseDegrees)
	byID := make(map[int]JointName, len(motors))
	for name, m := range motors {
		byID[m.ID] = name
	}
	f := &Feetech{cfg: cfg, motors: motors, byID: byID}
	if len(cal) > 0 {
		f.calibration = make(map[JointName]MotorCalibration, len(cal))
		for name, mc := range cal {
			f.calibration[name] = mc
		}
	}
	return f
}

// Connect opens the serial bus and builds the servo group.
func (f *Feetech) Connect(ctx context.Context) error {
	if f.bus != nil {
		return fmt.Errorf("bus %s already connected", f.cfg.Port)
	}
	b, err := feetech.NewBus(feetech.BusConfig{
		Port:     f.cfg.Port,
		BaudRate: f.cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  f.cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("open bus %s: %w", f.cfg.Port, err)
	}

	servos := make(map[JointName]*feetech.Servo, len(f.motors))
	ids := make([]int, 0, len(f.motors))
	for _, name := range AllJoints() {
		m := f.motors[name]
		model, ok := feetech.GetModel(m.Model)
		if !ok {
			b.Close()
			return fmt.Errorf("unknown servo model %q for %s", m.Model, name)
		}
		servos[name] = feetech.NewServo(b, m.ID, model)
		ids = append(ids, m.ID)
	}

	f.bus = b
	f.group = feetech.NewServoGroupByIDs(b, ids...)
	f.servos = servos
	return nil
}

// Disconnect closes the bus. When disableTorque is set the motors are
// released first so the arm can be moved by hand afterwards.
func (f *Feetech) Disconnect(ctx context.Context, disableTorque bool) error {
	if f.bus == nil {
		return fmt.Errorf("bus %s not connected", f.cfg.Port)
	}
	if disableTorque {
		if err := f.group.DisableAll(ctx); err != nil {
			return fmt.Errorf("disable torque on %s: %w", f.cfg.Port, err)
		}
	}
	err := f.bus.Close()
	f.bus, f.group, f.servos = nil, nil, nil
	if err != nil {
		return fmt.Errorf("close bus %s: %w", f.cfg.Port, err)
	}
	return nil
}

func (f *Feetech) IsConnected() bool { return f.bus != nil }

// IsCalibrated reports whether every motor has a valid record.
func (f *Feetech) IsCalibrated() bool {
	for _, name := range AllJoints() {
		mc, ok := f.calibration[name]
		if !ok || !mc.Valid() {
			return false
		}
	}
	return true
}

// Motors returns the static motor table.
func (f *Feetech) Motors() map[JointName]Motor {
	out := make(map[JointName]Motor, len(f.motors))
	for name, m := range f.motors {
		out[name] = m
	}
	return out
}

func (f *Feetech) EnableTorque(ctx context.Context) error {
	if err := f.group.EnableAll(ctx); err != nil {
		return fmt.Errorf("enable torque on %s: %w", f.cfg.Port, err)
	}
	return nil
}

func (f *Feetech) DisableTorque(ctx context.Context) error {
	if err := f.group.DisableAll(ctx); err != nil {
		return fmt.Errorf("disable torque on %s: %w", f.cfg.Port, err)
	}
	return nil
}

// WithTorqueDisabled releases the motors, runs fn, and re-engages
// torque on exit regardless of fn's outcome.
func (f *Feetech) WithTorqueDisabled(ctx context.Context, fn func() error) error {
	if err := f.DisableTorque(ctx); err != nil {
		return err
	}
	defer f.EnableTorque(ctx)
	return fn()
}

// WriteRegister writes a single motor's register.
func (f *Feetech) WriteRegister(ctx context.Context, register string, joint JointName, value int) error {
	servo, ok := f.servos[joint]
	if !ok {
		return fmt.Errorf("unknown joint %q on %s", joint, f.cfg.Port)
	}
	reg, ok := servo.Model().GetRegister(register)
	if !ok {
		return fmt.Errorf("unknown register %q", register)
	}
	if err := servo.WriteRegister(ctx, register, encodeRegister(value, reg)); err != nil {
		return fmt.Errorf("write %s on %s/%s: %w", register, f.cfg.Port, joint, err)
	}
	return nil
}

// SyncRead reads one register from every motor. Position registers
// return normalized values when the bus is calibrated, raw counts
// otherwise.
func (f *Feetech) SyncRead(ctx context.Context, register string) (map[JointName]float64, error) {
	if register == RegPresentPosition {
		raw, err := f.rawPositions(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[JointName]float64, len(raw))
		for name, pos := range raw {
			if mc, ok := f.calibration[name]; ok && mc.Valid() {
				out[name] = mc.Normalize(pos, f.motors[name].NormMode)
			} else {
				out[name] = float64(pos)
			}
		}
		return out, nil
	}

	out := make(map[JointName]float64, len(f.servos))
	for _, name := range AllJoints() {
		servo := f.servos[name]
		reg, ok := servo.Model().GetRegister(register)
		if !ok {
			return nil, fmt.Errorf("unknown register %q", register)
		}
		data, err := servo.ReadRegister(ctx, register)
		if err != nil {
			return nil, fmt.Errorf("read %s on %s/%s: %w", register, f.cfg.Port, name, err)
		}
		out[name] = float64(decodeRegister(data, reg))
	}
	return out, nil
}

// SyncWrite writes one register on every listed motor. Goal positions
// are denormalized through the calibration before hitting the wire.
func (f *Feetech) SyncWrite(ctx context.Context, register string, values map[JointName]float64) error {
	if register == RegGoalPosition {
		positions := make(feetech.PositionMap, len(values))
		for name, norm := range values {
			m, ok := f.motors[name]
			if !ok {
				return fmt.Errorf("unknown joint %q on %s", name, f.cfg.Port)
			}
			if mc, ok := f.calibration[name]; ok && mc.Valid() {
				positions[m.ID] = mc.Denormalize(norm, m.NormMode)
			} else {
				positions[m.ID] = int(norm)
			}
		}
		if err := f.group.SetPositions(ctx, positions); err != nil {
			return fmt.Errorf("write goal positions on %s: %w", f.cfg.Port, err)
		}
		return nil
	}

	for _, name := range AllJoints() {
		v, ok := values[name]
		if !ok {
			continue
		}
		if err := f.WriteRegister(ctx, register, name, int(v)); err != nil {
			return err
		}
	}
	return nil
}

// SetHalfTurnHomings records the offset between each motor's current
// raw position and the encoder half-turn, so the working range is
// zero-centered at the arm's physical midpoint. The previous offsets
// are cleared first so readings are taken against a known reference.
func (f *Feetech) SetHalfTurnHomings(ctx context.Context) (map[JointName]int, error) {
	for _, name := range AllJoints() {
		if err := f.WriteRegister(ctx, RegHomingOffset, name, 0); err != nil {
			return nil, err
		}
	}
	raw, err := f.rawPositions(ctx)
	if err != nil {
		return nil, err
	}
	offsets := make(map[JointName]int, len(raw))
	for name, pos := range raw {
		offset := pos - halfTurn
		if err := f.WriteRegister(ctx, RegHomingOffset, name, offset); err != nil {
			return nil, err
		}
		offsets[name] = offset
	}
	return offsets, nil
}

// RecordRangesOfMotion samples raw positions at 20ms intervals while
// the operator sweeps the joints, until stop is closed.
func (f *Feetech) RecordRangesOfMotion(ctx context.Context, stop <-chan struct{}, sample func(map[JointName]int)) (map[JointName]int, map[JointName]int, error) {
	mins := make(map[JointName]int, len(f.motors))
	maxes := make(map[JointName]int, len(f.motors))

	start, err := f.rawPositions(ctx)
	if err != nil {
		return nil, nil, err
	}
	for name, pos := range start {
		mins[name] = pos
		maxes[name] = pos
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-stop:
			return mins, maxes, nil
		case <-ticker.C:
			raw, err := f.rawPositions(ctx)
			if err != nil {
				// Transient read glitches are common while the arm
				// moves; keep sampling.
				continue
			}
			for name, pos := range raw {
				if pos < mins[name] {
					mins[name] = pos
				}
				if pos > maxes[name] {
					maxes[name] = pos
				}
			}
			if sample != nil {
				sample(raw)
			}
		}
	}
}

// WriteCalibration replaces the handle's record set and writes the
// homing offsets and position limits to the motors.
func (f *Feetech) WriteCalibration(ctx context.Context, cal map[JointName]MotorCalibration) error {
	for _, name := range AllJoints() {
		mc, ok := cal[name]
		if !ok {
			return fmt.Errorf("calibration for %s missing joint %q", f.cfg.Port, name)
		}
		if !mc.Valid() {
			return fmt.Errorf("invalid calibration for %s/%s: %+v", f.cfg.Port, name, mc)
		}
	}
	for _, name := range AllJoints() {
		mc := cal[name]
		if err := f.WriteRegister(ctx, RegHomingOffset, name, mc.HomingOffset); err != nil {
			return err
		}
		if err := f.WriteRegister(ctx, RegMinPositionLimit, name, mc.RangeMin); err != nil {
			return err
		}
		if err := f.WriteRegister(ctx, RegMaxPositionLimit, name, mc.RangeMax); err != nil {
			return err
		}
	}
	f.calibration = make(map[JointName]MotorCalibration, len(cal))
	for name, mc := range cal {
		f.calibration[name] = mc
	}
	return nil
}

// ConfigureMotors puts every motor in position mode with softened PID
// gains. Runs with torque disabled; the mode registers reject writes
// while torque is engaged.
func (f *Feetech) ConfigureMotors(ctx context.Context) error {
	return f.WithTorqueDisabled(ctx, func() error {
		for _, name := range AllJoints() {
			if err := f.WriteRegister(ctx, RegOperatingMode, name, OperatingModePosition); err != nil {
				return err
			}
			if err := f.WriteRegister(ctx, RegPCoefficient, name, DefaultPCoefficient); err != nil {
				return err
			}
			if err := f.WriteRegister(ctx, RegICoefficient, name, DefaultICoefficient); err != nil {
				return err
			}
			if err := f.WriteRegister(ctx, RegDCoefficient, name, DefaultDCoefficient); err != nil {
				return err
			}
		}
		return nil
	})
}

func (f *Feetech) rawPositions(ctx context.Context) (map[JointName]int, error) {
	if f.group == nil {
		return nil, fmt.Errorf("bus %s not connected", f.cfg.Port)
	}
	byID, err := f.group.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read positions on %s: %w", f.cfg.Port, err)
	}
	out := make(map[JointName]int, len(byID))
	for id, pos := range byID {
		name, ok := f.byID[id]
		if !ok {
			continue
		}
		out[name] = pos
	}
	return out, nil
}

// Little-endian register codec, LSB first. Registers with a sign bit
// (position_offset and friends) use the servo's sign-magnitude
// convention, not two's complement.
func encodeRegister(value int, reg feetech.Register) []byte {
	if reg.SignBit > 0 && value < 0 {
		value = -value | 1<<reg.SignBit
	}
	data := make([]byte, reg.Size)
	for i := range data {
		data[i] = byte(value >> (8 * i))
	}
	return data
}

func decodeRegister(data []byte, reg feetech.Register) int {
	v := 0
	for i := 0; i < reg.Size && i < len(data); i++ {
		v |= int(data[i]) << (8 * i)
	}
	if reg.SignBit > 0 && v&(1<<reg.SignBit) != 0 {
		v = -(v & (1<<reg.SignBit - 1))
	}
	return v
}
