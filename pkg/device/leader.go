package device

import (
	"context"

	"github.com/gwillem/lerobot-dual/pkg/bus"
)

// LeaderConfig configures the teleoperation input device.
type LeaderConfig struct {
	RightPort  string
	LeftPort   string
	UseDegrees bool

	DisableTorqueOnDisconnect bool

	Calibration CalibrationSet
	Confirmer   Confirmer
	Persist     func(CalibrationSet) error
	Logger      Logger
}

// Leader is the input side of the teleoperation pair: the arms the
// operator moves by hand. It carries no cameras and never clamps,
// since nothing it reads is ever written back to its own motors.
type Leader struct {
	*Coordinator
}

// NewLeader builds a leader over two Feetech buses.
func NewLeader(cfg LeaderConfig) (*Leader, error) {
	right, left, err := splitCalibration(cfg.Calibration)
	if err != nil {
		return nil, err
	}
	coord, err := New(Config{
		Name:                      "dual_leader",
		RightBus:                  bus.NewFeetech(bus.FeetechConfig{Port: cfg.RightPort, UseDegrees: cfg.UseDegrees}, right),
		LeftBus:                   bus.NewFeetech(bus.FeetechConfig{Port: cfg.LeftPort, UseDegrees: cfg.UseDegrees}, left),
		DisableTorqueOnDisconnect: cfg.DisableTorqueOnDisconnect,
		Calibration:               cfg.Calibration,
		Confirmer:                 cfg.Confirmer,
		Persist:                   cfg.Persist,
		Logger:                    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Leader{Coordinator: coord}, nil
}

// GetAction reads the leader's present positions as a unified action.
func (l *Leader) GetAction(ctx context.Context) (map[string]float64, error) {
	obs, err := l.Read(ctx)
	if err != nil {
		return nil, err
	}
	return obs.Positions, nil
}

// SendFeedback fails: the leader has no feedback path.
func (l *Leader) SendFeedback(ctx context.Context, feedback map[string]float64) error {
	return &UnsupportedOperationError{Device: l.Name(), Op: "feedback"}
}
