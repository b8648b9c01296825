package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maxStep(v float64) *float64 { return &v }

func TestEnsureSafeGoal_NoClampConfigured(t *testing.T) {
	requested := map[string]float64{"right_joint0": 500}
	got, err := EnsureSafeGoal(requested, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, requested, got)
}

func TestEnsureSafeGoal_NoopWhenAtTarget(t *testing.T) {
	current := map[string]float64{"right_joint0": 3.5, "left_joint1": -7}
	got, err := EnsureSafeGoal(current, current, maxStep(0))
	require.NoError(t, err)
	assert.Equal(t, current, got)
}

func TestEnsureSafeGoal_Boundaries(t *testing.T) {
	tests := []struct {
		name      string
		requested float64
		current   float64
		maxStep   float64
		want      float64
	}{
		{"clamped up", 10, 0, 3, 3},
		{"clamped down", -10, 0, 3, -3},
		{"within limit", 2, 0, 3, 2},
		{"exactly at limit", 3, 0, 3, 3},
		{"offset current", 15, 10, 3, 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EnsureSafeGoal(
				map[string]float64{"k": tt.requested},
				map[string]float64{"k": tt.current},
				maxStep(tt.maxStep),
			)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got["k"], 1e-9)
		})
	}
}

func TestEnsureSafeGoal_MissingCurrentFails(t *testing.T) {
	_, err := EnsureSafeGoal(
		map[string]float64{"right_joint0": 10, "left_joint0": 10},
		map[string]float64{"right_joint0": 0},
		maxStep(3),
	)
	require.Error(t, err)
	var clampErr *ClampContractError
	require.ErrorAs(t, err, &clampErr)
	assert.Equal(t, "left_joint0", clampErr.Key)
}
