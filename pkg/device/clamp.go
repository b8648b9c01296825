package device

import "math"

// EnsureSafeGoal caps every requested joint position so it never
// moves more than maxStep away from the current position in one
// cycle. A nil maxStep disables the clamp and returns requested
// unchanged.
//
// Every requested key must have a matching current reading; a missing
// one is a ClampContractError. Callers enabling the clamp pay for a
// fresh position read before every write.
func EnsureSafeGoal(requested, current map[string]float64, maxStep *float64) (map[string]float64, error) {
	if maxStep == nil {
		return requested, nil
	}
	safe := make(map[string]float64, len(requested))
	for key, goal := range requested {
		cur, ok := current[key]
		if !ok {
			return nil, &ClampContractError{Key: key}
		}
		delta := goal - cur
		if math.Abs(delta) > *maxStep {
			goal = cur + math.Copysign(*maxStep, delta)
		}
		safe[key] = goal
	}
	return safe, nil
}
