package device

import (
	"context"
	"fmt"
	"time"

	"github.com/gwillem/lerobot-dual/pkg/bus"
	"github.com/gwillem/lerobot-dual/pkg/camera"
)

// ArmSlot binds one side label to its bus handle.
type ArmSlot struct {
	Side Side
	Bus  bus.Handle
}

// Feature describes one entry of the observation or action schema.
type Feature struct {
	Dtype string // "float64" for joint positions, "image" for frames
	Shape []int  // height, width, channels for images; empty otherwise
}

// Observation is one unified reading of the device: joint positions
// under side-prefixed keys, camera frames under their own globally
// unique names.
type Observation struct {
	Positions map[string]float64
	Frames    map[string]camera.Frame
}

// Config configures a Coordinator.
type Config struct {
	// Name identifies the device in errors and logs, e.g.
	// "dual_follower".
	Name string

	// RightBus and LeftBus are the two independent arm buses. The
	// coordinator takes exclusive ownership of both.
	RightBus bus.Handle
	LeftBus  bus.Handle

	// Cameras, if any, are connected after motor setup and captured
	// on every read. Only the follower carries cameras.
	Cameras map[string]camera.Camera

	// MaxRelativeTarget, when set, caps how far any joint may be
	// commanded from its current position in one write. Enabling it
	// costs an extra position read per write.
	MaxRelativeTarget *float64

	// DisableTorqueOnDisconnect releases the motors when the device
	// disconnects.
	DisableTorqueOnDisconnect bool

	// Calibration is the persisted record set, if any. Replaced when
	// calibration re-runs.
	Calibration CalibrationSet

	// Confirmer gates operator-paced calibration steps.
	Confirmer Confirmer

	// Persist, if set, is called with the full record set right after
	// both sides complete calibration. It must write atomically.
	Persist func(CalibrationSet) error

	Logger Logger
}

// Coordinator drives two independent arm buses as one bimanual
// device. It owns both handles exclusively; all dual operations walk
// the arms right-then-left and no operation is safe for concurrent
// use.
type Coordinator struct {
	name    string
	arms    []ArmSlot
	cameras map[string]camera.Camera

	maxRelativeTarget *float64
	disableTorque     bool

	calibration CalibrationSet
	confirmer   Confirmer
	persist     func(CalibrationSet) error
	log         Logger

	// Schemas are fixed at construction from the static joint and
	// camera tables, never recomputed per call.
	obsFeatures map[string]Feature
	actFeatures map[string]Feature
}

// New creates a Coordinator over the given buses. The calibration set
// from cfg is installed on the buses at connect time.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Name == "" {
		cfg.Name = "dual_arm"
	}
	if cfg.RightBus == nil || cfg.LeftBus == nil {
		return nil, fmt.Errorf("%s: both arm buses are required", cfg.Name)
	}
	if cfg.Logger == nil {
		cfg.Logger = NopLogger()
	}

	c := &Coordinator{
		name: cfg.Name,
		arms: []ArmSlot{
			{Side: SideRight, Bus: cfg.RightBus},
			{Side: SideLeft, Bus: cfg.LeftBus},
		},
		cameras:           cfg.Cameras,
		maxRelativeTarget: cfg.MaxRelativeTarget,
		disableTorque:     cfg.DisableTorqueOnDisconnect,
		calibration:       cfg.Calibration,
		confirmer:         cfg.Confirmer,
		persist:           cfg.Persist,
		log:               cfg.Logger,
	}

	c.actFeatures = make(map[string]Feature, 2*len(bus.AllJoints()))
	for _, arm := range c.arms {
		for _, joint := range bus.AllJoints() {
			c.actFeatures[arm.Side.PosKey(joint)] = Feature{Dtype: "float64"}
		}
	}
	c.obsFeatures = make(map[string]Feature, len(c.actFeatures)+len(c.cameras))
	for key, ft := range c.actFeatures {
		c.obsFeatures[key] = ft
	}
	for name, cam := range c.cameras {
		h, w := cam.Shape()
		c.obsFeatures[name] = Feature{Dtype: "image", Shape: []int{h, w, 3}}
	}
	return c, nil
}

// Name returns the device name.
func (c *Coordinator) Name() string { return c.name }

// Arms returns the ordered (side, bus) slots, right first.
func (c *Coordinator) Arms() []ArmSlot { return c.arms }

// ObservationFeatures returns the fixed observation schema.
func (c *Coordinator) ObservationFeatures() map[string]Feature { return c.obsFeatures }

// ActionFeatures returns the fixed action schema.
func (c *Coordinator) ActionFeatures() map[string]Feature { return c.actFeatures }

// IsConnected reports whether both buses and all cameras are
// connected. Derived, never set directly.
func (c *Coordinator) IsConnected() bool {
	for _, arm := range c.arms {
		if !arm.Bus.IsConnected() {
			return false
		}
	}
	for _, cam := range c.cameras {
		if !cam.IsConnected() {
			return false
		}
	}
	return true
}

// IsCalibrated reports whether both buses hold a complete record set.
func (c *Coordinator) IsCalibrated() bool {
	for _, arm := range c.arms {
		if !arm.Bus.IsCalibrated() {
			return false
		}
	}
	return true
}

// Connect connects both buses right-then-left, calibrates when needed
// and requested, applies the runtime motor configuration and finally
// connects the cameras.
//
// There is no rollback: when the left bus fails to connect the right
// bus stays connected, and the caller must Disconnect explicitly to
// reset state.
func (c *Coordinator) Connect(ctx context.Context, calibrate bool) error {
	if c.IsConnected() {
		return &AlreadyConnectedError{Device: c.name}
	}

	for _, arm := range c.arms {
		if err := arm.Bus.Connect(ctx); err != nil {
			return fmt.Errorf("%s: connect %s bus: %w", c.name, arm.Side, err)
		}
	}

	if len(c.calibration) > 0 {
		if err := c.writeCalibration(ctx); err != nil {
			return err
		}
	}

	if !c.IsCalibrated() && calibrate {
		if err := c.Calibrate(ctx); err != nil {
			return err
		}
	}

	if err := c.Configure(ctx); err != nil {
		return err
	}

	for name, cam := range c.cameras {
		if err := cam.Connect(ctx); err != nil {
			return fmt.Errorf("%s: connect camera %s: %w", c.name, name, err)
		}
	}

	c.log.Infof("%s connected", c.name)
	return nil
}

// Disconnect closes both buses right-then-left, then the cameras.
func (c *Coordinator) Disconnect(ctx context.Context) error {
	if !c.IsConnected() {
		return &NotConnectedError{Device: c.name}
	}

	for _, arm := range c.arms {
		if err := arm.Bus.Disconnect(ctx, c.disableTorque); err != nil {
			return fmt.Errorf("%s: disconnect %s bus: %w", c.name, arm.Side, err)
		}
	}
	for name, cam := range c.cameras {
		if err := cam.Disconnect(ctx); err != nil {
			return fmt.Errorf("%s: disconnect camera %s: %w", c.name, name, err)
		}
	}

	c.log.Infof("%s disconnected", c.name)
	return nil
}

// Calibrate runs the full two-arm calibration protocol, writes the
// split record sets to the buses and persists the unified set as one
// atomic unit. Any prior records are discarded for the whole device,
// not per side.
func (c *Coordinator) Calibrate(ctx context.Context) error {
	if c.confirmer == nil {
		return fmt.Errorf("%s: calibration requires a confirmer", c.name)
	}
	cal := &Calibrator{Confirm: c.confirmer, Log: c.log}
	set, err := cal.Run(ctx, c.name, c.arms)
	if err != nil {
		return err
	}

	c.calibration = set
	if err := c.writeCalibration(ctx); err != nil {
		return err
	}
	if c.persist != nil {
		if err := c.persist(set); err != nil {
			return fmt.Errorf("%s: persist calibration: %w", c.name, err)
		}
	}
	c.log.Infof("%s calibrated", c.name)
	return nil
}

// Calibration returns the current record set.
func (c *Coordinator) Calibration() CalibrationSet { return c.calibration }

// writeCalibration splits the unified set per side and hands each bus
// only its own local keys. Writing the unified set to a bus directly
// would address motors that do not exist; the split is load-bearing.
func (c *Coordinator) writeCalibration(ctx context.Context) error {
	for _, arm := range c.arms {
		local, err := c.calibration.SideRecords(arm.Side)
		if err != nil {
			return err
		}
		if err := arm.Bus.WriteCalibration(ctx, local); err != nil {
			return fmt.Errorf("%s: write %s calibration: %w", c.name, arm.Side, err)
		}
	}
	return nil
}

// Configure applies position mode and the softened PID gains to every
// motor on both buses.
func (c *Coordinator) Configure(ctx context.Context) error {
	for _, arm := range c.arms {
		if err := arm.Bus.ConfigureMotors(ctx); err != nil {
			return fmt.Errorf("%s: configure %s bus: %w", c.name, arm.Side, err)
		}
	}
	return nil
}

// Read reads present positions from both buses, right before left,
// and merges them into the unified namespace, plus one frame per
// camera.
func (c *Coordinator) Read(ctx context.Context) (Observation, error) {
	if !c.IsConnected() {
		return Observation{}, &NotConnectedError{Device: c.name}
	}

	start := time.Now()
	positions, err := c.readPositions(ctx, true)
	if err != nil {
		return Observation{}, err
	}
	c.log.Debugf("%s read state: %.1fms", c.name, float64(time.Since(start).Microseconds())/1000)

	obs := Observation{Positions: positions}
	if len(c.cameras) > 0 {
		obs.Frames = make(map[string]camera.Frame, len(c.cameras))
		for name, cam := range c.cameras {
			start = time.Now()
			frame, err := cam.AsyncRead(ctx)
			if err != nil {
				return Observation{}, fmt.Errorf("%s: read camera %s: %w", c.name, name, err)
			}
			obs.Frames[name] = frame
			c.log.Debugf("%s read %s: %.1fms", c.name, name, float64(time.Since(start).Microseconds())/1000)
		}
	}
	return obs, nil
}

// Write commands both arms toward the position-valued entries of
// action. With a max relative target configured it reads present
// positions first and clamps the goal, so the action actually written
// may differ from the request: callers must track device state from
// the returned map, not their own request.
//
// Writes go right bus first. When the left write fails after the
// right succeeded the device is left in a mixed state; the error is
// surfaced as-is and reconciliation is the caller's job.
func (c *Coordinator) Write(ctx context.Context, action map[string]float64) (map[string]float64, error) {
	if !c.IsConnected() {
		return nil, &NotConnectedError{Device: c.name}
	}

	goal := stripPositions(action)

	if c.maxRelativeTarget != nil {
		current, err := c.readPositions(ctx, false)
		if err != nil {
			return nil, err
		}
		goal, err = EnsureSafeGoal(goal, current, c.maxRelativeTarget)
		if err != nil {
			return nil, err
		}
	}

	split, err := Split(goal)
	if err != nil {
		return nil, err
	}
	for _, arm := range c.arms {
		local := split[arm.Side]
		if len(local) == 0 {
			continue
		}
		if err := arm.Bus.SyncWrite(ctx, bus.RegGoalPosition, local); err != nil {
			return nil, fmt.Errorf("%s: write %s goal: %w", c.name, arm.Side, err)
		}
	}

	applied := make(map[string]float64, len(goal))
	for key, v := range goal {
		applied[key+PosSuffix] = v
	}
	return applied, nil
}

// readPositions merges both buses' present positions right-then-left,
// with or without the position suffix on the keys.
func (c *Coordinator) readPositions(ctx context.Context, posKeys bool) (map[string]float64, error) {
	merged := make(map[string]float64, len(c.actFeatures))
	for _, arm := range c.arms {
		local, err := arm.Bus.SyncRead(ctx, bus.RegPresentPosition)
		if err != nil {
			return nil, fmt.Errorf("%s: read %s positions: %w", c.name, arm.Side, err)
		}
		var unified map[string]float64
		if posKeys {
			unified = MergePositions(arm.Side, local)
		} else {
			unified = Merge(arm.Side, local)
		}
		for key, v := range unified {
			merged[key] = v
		}
	}
	return merged, nil
}
