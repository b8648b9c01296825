// Package teleop provides bimanual teleoperation: a dual-arm leader
// driving a dual-arm follower.
package teleop

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gwillem/lerobot-dual/pkg/device"
)

// State represents the current state of teleoperation.
type State struct {
	// Action is the last unified action read from the leader, keyed
	// "{side}_{joint}.pos".
	Action map[string]float64
	// Applied is what was actually written to the follower, which may
	// differ when the safety clamp stepped in.
	Applied   map[string]float64
	Timestamp time.Time
	Error     error
}

// Controller manages the teleoperation control loop.
type Controller struct {
	leader   *device.Leader
	follower *device.Follower
	hz       int
	mirror   bool

	mu      sync.Mutex
	running bool
	stateCh chan State
	logCh   chan string
}

// Config holds configuration for the controller.
type Config struct {
	Leader   *device.Leader
	Follower *device.Follower
	Hz       int
	Mirror   bool // cross-map arms: the right leader drives the left follower
}

// NewController creates a new teleoperation controller over already
// constructed devices. Start connects them.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Leader == nil || cfg.Follower == nil {
		return nil, fmt.Errorf("teleop requires both a leader and a follower")
	}
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	return &Controller{
		leader:   cfg.Leader,
		follower: cfg.Follower,
		hz:       cfg.Hz,
		mirror:   cfg.Mirror,
		stateCh:  make(chan State, 1),
		logCh:    make(chan string, 10),
	}, nil
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the control frequency.
func (c *Controller) Hz() int {
	return c.hz
}

// Logf feeds a message into the log channel; it also satisfies the
// device Logger contract so device logs land in the same pane.
func (c *Controller) Logf(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start connects both devices and runs the control loop until ctx is
// cancelled.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	if err := c.leader.Connect(ctx, false); err != nil {
		c.setRunning(false)
		return fmt.Errorf("connect leader: %w", err)
	}
	if err := c.follower.Connect(ctx, false); err != nil {
		c.setRunning(false)
		return fmt.Errorf("connect follower: %w", err)
	}

	// The leader is moved by hand, the follower holds its pose.
	for _, arm := range c.leader.Arms() {
		if err := arm.Bus.DisableTorque(ctx); err != nil {
			c.Logf("Warning: failed to release leader %s arm: %v", arm.Side, err)
		}
	}
	c.Logf("Leader arms: torque disabled (passive mode)")
	for _, arm := range c.follower.Arms() {
		if err := arm.Bus.EnableTorque(ctx); err != nil {
			c.Logf("Warning: failed to enable follower %s arm: %v", arm.Side, err)
		}
	}
	c.Logf("Follower arms: torque enabled")

	c.Logf("Bimanual teleoperation started at %d Hz", c.hz)

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

func (c *Controller) step(ctx context.Context) {
	action, err := c.leader.GetAction(ctx)
	if err != nil {
		c.Logf("Read error: %v", err)
		c.sendState(State{Error: err, Timestamp: time.Now()})
		return
	}

	goal := action
	if c.mirror {
		goal = mirrorAction(action)
	}

	applied, err := c.follower.SendAction(ctx, goal)
	if err != nil {
		c.Logf("Write error: %v", err)
	}

	c.sendState(State{
		Action:    action,
		Applied:   applied,
		Timestamp: time.Now(),
	})
}

// mirrorAction swaps the side prefixes so each leader arm drives the
// opposite follower arm.
func mirrorAction(action map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(action))
	for key, v := range action {
		switch {
		case strings.HasPrefix(key, string(device.SideRight)+"_"):
			out[string(device.SideLeft)+strings.TrimPrefix(key, string(device.SideRight))] = v
		case strings.HasPrefix(key, string(device.SideLeft)+"_"):
			out[string(device.SideRight)+strings.TrimPrefix(key, string(device.SideLeft))] = v
		default:
			out[key] = v
		}
	}
	return out
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}

func (c *Controller) setRunning(v bool) {
	c.mu.Lock()
	c.running = v
	c.mu.Unlock()
}

func (c *Controller) shutdown() {
	c.setRunning(false)

	ctx := context.Background()
	for _, d := range []interface {
		IsConnected() bool
		Disconnect(context.Context) error
	}{c.follower, c.leader} {
		if !d.IsConnected() {
			continue
		}
		if err := d.Disconnect(ctx); err != nil {
			c.Logf("Warning: disconnect failed: %v", err)
		}
	}
	c.Logf("Teleoperation stopped")
}
