// Package lerobotdual coordinates two SO-101 robot arms as one
// bimanual device, compatible with the HuggingFace LeRobot dual-arm
// follower/leader setup.
//
// Each device owns two independent serial buses (a right arm and a
// left arm, eight motors each) and exposes them under one unified,
// side-prefixed namespace. The follower variant is the actuated side;
// the leader variant is the teleoperation input you move by hand.
//
// # Usage
//
// First, run setup to detect your arms and calibrate both devices:
//
//	lerobot-dual setup
//	lerobot-dual calibrate
//
// Then start bimanual teleoperation:
//
//	lerobot-dual teleoperate
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/lerobot-dual: CLI with setup, calibrate and teleoperate commands
//   - pkg/bus: single-bus motor access over the Feetech servo driver
//   - pkg/device: dual-arm coordinator, calibration and safety clamp
//   - pkg/camera: camera collaborator contract for the follower
//   - pkg/teleop: bimanual teleoperation controller
package lerobotdual
