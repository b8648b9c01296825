// Package camera defines the capture contract consumed by the
// follower device. Capture backends (webcams, RealSense, replay
// sources) implement Camera; the device core only calls it once per
// observation cycle.
package camera

import "context"

// Frame is one captured RGB image.
type Frame struct {
	Width  int
	Height int
	Pixels []byte // RGB24, row-major
}

// Camera is one capture device. Names are globally unique across the
// device, so frames merge into observations without prefixing.
type Camera interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// Shape returns the fixed frame geometry, used to build the
	// observation schema at construction time.
	Shape() (height, width int)

	// AsyncRead returns the most recent frame without blocking on a
	// new capture. Called once per observation cycle; best effort.
	AsyncRead(ctx context.Context) (Frame, error)
}
