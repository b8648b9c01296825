package device

import "fmt"

// AlreadyConnectedError reports an operation that requires a
// disconnected device.
type AlreadyConnectedError struct {
	Device string
}

func (e *AlreadyConnectedError) Error() string {
	return fmt.Sprintf("%s already connected", e.Device)
}

// NotConnectedError reports an operation that requires a connected
// device.
type NotConnectedError struct {
	Device string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("%s is not connected", e.Device)
}

// NamespaceViolationError reports a caller-supplied key that matches
// no side prefix. Such keys are programming errors, never silently
// dropped.
type NamespaceViolationError struct {
	Key string
}

func (e *NamespaceViolationError) Error() string {
	return fmt.Sprintf("key %q matches no side prefix", e.Key)
}

// ClampContractError reports a commanded joint with no matching
// current-position reading while the safety clamp is enabled.
// Skipping the clamp for that joint would defeat its purpose, so the
// write fails instead.
type ClampContractError struct {
	Key string
}

func (e *ClampContractError) Error() string {
	return fmt.Sprintf("safety clamp enabled but no current position for %q", e.Key)
}

// UnsupportedOperationError reports an operation a device role does
// not implement, such as feedback on a leader.
type UnsupportedOperationError struct {
	Device string
	Op     string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Device, e.Op)
}
