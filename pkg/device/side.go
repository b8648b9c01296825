// Package device coordinates the two arms of a bimanual SO-101 device
// behind one side-prefixed namespace, with calibration and a safety
// clamp on commanded motion.
package device

import (
	"strings"

	"github.com/gwillem/lerobot-dual/pkg/bus"
)

// Side identifies one of the two symmetric arms.
type Side string

const (
	SideRight Side = "right"
	SideLeft  Side = "left"
)

// Sides returns both sides in the fixed dual-operation order:
// right first, then left. Every connect, read and write walks the
// arms in this order so a failure on the second bus always finds the
// first in a known state.
func Sides() []Side {
	return []Side{SideRight, SideLeft}
}

// PosSuffix marks position-valued keys in the unified namespace.
const PosSuffix = ".pos"

func (s Side) prefix() string { return string(s) + "_" }

// Key builds the unified key for a joint, e.g. "right_joint0".
func (s Side) Key(j bus.JointName) string {
	return s.prefix() + string(j)
}

// PosKey builds the unified position key for a joint, e.g.
// "right_joint0.pos".
func (s Side) PosKey(j bus.JointName) string {
	return s.Key(j) + PosSuffix
}

// Merge prefixes every local joint key with the side, producing
// unified keys.
func Merge[T any](side Side, local map[bus.JointName]T) map[string]T {
	out := make(map[string]T, len(local))
	for j, v := range local {
		out[side.Key(j)] = v
	}
	return out
}

// MergePositions is Merge with the position suffix appended, for
// dicts crossing the boundary as observations or actions.
func MergePositions(side Side, local map[bus.JointName]float64) map[string]float64 {
	out := make(map[string]float64, len(local))
	for j, v := range local {
		out[side.PosKey(j)] = v
	}
	return out
}

// Split partitions a unified map into per-side local maps, stripping
// the side prefixes. Every key must match exactly one side; a key
// matching neither is a NamespaceViolationError.
func Split[T any](unified map[string]T) (map[Side]map[bus.JointName]T, error) {
	out := map[Side]map[bus.JointName]T{
		SideRight: make(map[bus.JointName]T),
		SideLeft:  make(map[bus.JointName]T),
	}
	for key, v := range unified {
		matched := false
		for _, side := range Sides() {
			if local, ok := strings.CutPrefix(key, side.prefix()); ok {
				out[side][bus.JointName(local)] = v
				matched = true
				break
			}
		}
		if !matched {
			return nil, &NamespaceViolationError{Key: key}
		}
	}
	return out, nil
}

// stripPositions keeps only position-valued keys of an action and
// strips their suffix, leaving bare unified joint keys.
func stripPositions(action map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(action))
	for key, v := range action {
		if name, ok := strings.CutSuffix(key, PosSuffix); ok {
			out[name] = v
		}
	}
	return out
}
