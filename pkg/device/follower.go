package device

import (
	"context"

	"github.com/gwillem/lerobot-dual/pkg/bus"
	"github.com/gwillem/lerobot-dual/pkg/camera"
)

// FollowerConfig configures the actuated dual-arm device.
type FollowerConfig struct {
	RightPort  string
	LeftPort   string
	UseDegrees bool

	Cameras map[string]camera.Camera

	// MaxRelativeTarget caps per-cycle joint motion. Strongly
	// recommended on the follower: it is the side that actually
	// moves.
	MaxRelativeTarget *float64

	DisableTorqueOnDisconnect bool

	Calibration CalibrationSet
	Confirmer   Confirmer
	Persist     func(CalibrationSet) error
	Logger      Logger
}

// Follower is the actuated side of the teleoperation pair: two arm
// buses plus cameras, exposing the robot contract.
type Follower struct {
	*Coordinator
}

// NewFollower builds a follower over two Feetech buses.
func NewFollower(cfg FollowerConfig) (*Follower, error) {
	right, left, err := splitCalibration(cfg.Calibration)
	if err != nil {
		return nil, err
	}
	coord, err := New(Config{
		Name:                      "dual_follower",
		RightBus:                  bus.NewFeetech(bus.FeetechConfig{Port: cfg.RightPort, UseDegrees: cfg.UseDegrees}, right),
		LeftBus:                   bus.NewFeetech(bus.FeetechConfig{Port: cfg.LeftPort, UseDegrees: cfg.UseDegrees}, left),
		Cameras:                   cfg.Cameras,
		MaxRelativeTarget:         cfg.MaxRelativeTarget,
		DisableTorqueOnDisconnect: cfg.DisableTorqueOnDisconnect,
		Calibration:               cfg.Calibration,
		Confirmer:                 cfg.Confirmer,
		Persist:                   cfg.Persist,
		Logger:                    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Follower{Coordinator: coord}, nil
}

// GetObservation reads the unified observation: both arms' positions
// plus one frame per camera.
func (f *Follower) GetObservation(ctx context.Context) (Observation, error) {
	return f.Read(ctx)
}

// SendAction commands the arms and returns the action actually
// written, which may be clamped.
func (f *Follower) SendAction(ctx context.Context, action map[string]float64) (map[string]float64, error) {
	return f.Write(ctx, action)
}

func splitCalibration(set CalibrationSet) (right, left map[bus.JointName]bus.MotorCalibration, err error) {
	if len(set) == 0 {
		return nil, nil, nil
	}
	right, err = set.SideRecords(SideRight)
	if err != nil {
		return nil, nil, err
	}
	left, err = set.SideRecords(SideLeft)
	if err != nil {
		return nil, nil, err
	}
	return right, left, nil
}
