package device

import (
	"context"
	"fmt"

	"github.com/gwillem/lerobot-dual/pkg/bus"
	"github.com/gwillem/lerobot-dual/pkg/camera"
)

// fakeBus is a scriptable in-memory Handle.
type fakeBus struct {
	motors      map[bus.JointName]bus.Motor
	connected   bool
	calibration map[bus.JointName]bus.MotorCalibration

	positions map[bus.JointName]float64
	homings   map[bus.JointName]int
	mins      map[bus.JointName]int
	maxes     map[bus.JointName]int

	connectErr error
	readErr    error
	writeErr   error
	homingErr  error

	readCount      int
	goalWrites     []map[bus.JointName]float64
	torqueDisables int
	torqueEnables  int
	configures     int
	calWrites      int
	lastDisconnect *bool // torque flag of the last Disconnect
}

func newFakeBus() *fakeBus {
	f := &fakeBus{
		motors:    bus.ArmMotors(false),
		positions: make(map[bus.JointName]float64),
		homings:   make(map[bus.JointName]int),
		mins:      make(map[bus.JointName]int),
		maxes:     make(map[bus.JointName]int),
	}
	for _, joint := range bus.AllJoints() {
		f.positions[joint] = 0
		f.homings[joint] = 12
		f.mins[joint] = 100
		f.maxes[joint] = 4000
	}
	return f
}

func (f *fakeBus) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeBus) Disconnect(ctx context.Context, disableTorque bool) error {
	f.connected = false
	f.lastDisconnect = &disableTorque
	return nil
}

func (f *fakeBus) IsConnected() bool { return f.connected }

func (f *fakeBus) IsCalibrated() bool {
	for _, joint := range bus.AllJoints() {
		mc, ok := f.calibration[joint]
		if !ok || !mc.Valid() {
			return false
		}
	}
	return true
}

func (f *fakeBus) Motors() map[bus.JointName]bus.Motor { return f.motors }

func (f *fakeBus) EnableTorque(ctx context.Context) error {
	f.torqueEnables++
	return nil
}

func (f *fakeBus) DisableTorque(ctx context.Context) error {
	f.torqueDisables++
	return nil
}

func (f *fakeBus) WithTorqueDisabled(ctx context.Context, fn func() error) error {
	f.torqueDisables++
	defer func() { f.torqueEnables++ }()
	return fn()
}

func (f *fakeBus) WriteRegister(ctx context.Context, register string, joint bus.JointName, value int) error {
	return nil
}

func (f *fakeBus) SyncRead(ctx context.Context, register string) (map[bus.JointName]float64, error) {
	if register != bus.RegPresentPosition {
		return nil, fmt.Errorf("fake bus cannot read %q", register)
	}
	if f.readErr != nil {
		return nil, f.readErr
	}
	f.readCount++
	out := make(map[bus.JointName]float64, len(f.positions))
	for joint, pos := range f.positions {
		out[joint] = pos
	}
	return out, nil
}

func (f *fakeBus) SyncWrite(ctx context.Context, register string, values map[bus.JointName]float64) error {
	if register != bus.RegGoalPosition {
		return fmt.Errorf("fake bus cannot write %q", register)
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	written := make(map[bus.JointName]float64, len(values))
	for joint, v := range values {
		written[joint] = v
	}
	f.goalWrites = append(f.goalWrites, written)
	return nil
}

func (f *fakeBus) SetHalfTurnHomings(ctx context.Context) (map[bus.JointName]int, error) {
	if f.homingErr != nil {
		return nil, f.homingErr
	}
	out := make(map[bus.JointName]int, len(f.homings))
	for joint, v := range f.homings {
		out[joint] = v
	}
	return out, nil
}

func (f *fakeBus) RecordRangesOfMotion(ctx context.Context, stop <-chan struct{}, sample func(map[bus.JointName]int)) (map[bus.JointName]int, map[bus.JointName]int, error) {
	if sample != nil {
		current := make(map[bus.JointName]int, len(f.mins))
		for joint, v := range f.mins {
			current[joint] = v
		}
		sample(current)
	}
	<-stop
	mins := make(map[bus.JointName]int, len(f.mins))
	maxes := make(map[bus.JointName]int, len(f.maxes))
	for joint := range f.mins {
		mins[joint] = f.mins[joint]
		maxes[joint] = f.maxes[joint]
	}
	return mins, maxes, nil
}

func (f *fakeBus) WriteCalibration(ctx context.Context, cal map[bus.JointName]bus.MotorCalibration) error {
	f.calWrites++
	f.calibration = make(map[bus.JointName]bus.MotorCalibration, len(cal))
	for joint, mc := range cal {
		f.calibration[joint] = mc
	}
	return nil
}

func (f *fakeBus) ConfigureMotors(ctx context.Context) error {
	f.configures++
	return nil
}

// fakeConfirmer acknowledges every prompt, optionally failing at the
// n-th interaction (1-based) to simulate an operator abort.
type fakeConfirmer struct {
	prompts []string
	failAt  int
}

func (f *fakeConfirmer) interact(prompt string) error {
	f.prompts = append(f.prompts, prompt)
	if f.failAt > 0 && len(f.prompts) == f.failAt {
		return fmt.Errorf("operator aborted")
	}
	return nil
}

func (f *fakeConfirmer) Confirm(prompt string) error {
	return f.interact(prompt)
}

func (f *fakeConfirmer) Watch(prompt string) (<-chan struct{}, func(map[bus.JointName]int), error) {
	if err := f.interact(prompt); err != nil {
		return nil, nil, err
	}
	stop := make(chan struct{})
	close(stop)
	return stop, nil, nil
}

// fakeCamera is a scriptable in-memory camera.
type fakeCamera struct {
	connected  bool
	connectErr error
	frame      camera.Frame
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{
		frame: camera.Frame{Width: 640, Height: 480, Pixels: []byte{1, 2, 3}},
	}
}

func (f *fakeCamera) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeCamera) Disconnect(ctx context.Context) error {
	f.connected = false
	return nil
}

func (f *fakeCamera) IsConnected() bool { return f.connected }

func (f *fakeCamera) Shape() (int, int) { return f.frame.Height, f.frame.Width }

func (f *fakeCamera) AsyncRead(ctx context.Context) (camera.Frame, error) {
	return f.frame, nil
}

// fullCalibration builds a complete, valid record set for both sides.
func fullCalibration() CalibrationSet {
	set := make(CalibrationSet)
	for _, side := range Sides() {
		for i, joint := range bus.AllJoints() {
			set[side.Key(joint)] = bus.MotorCalibration{
				ID:           i + 1,
				HomingOffset: 10,
				RangeMin:     100,
				RangeMax:     4000,
			}
		}
	}
	return set
}
