package voice

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "above range", in: 1.5, want: 1.0},
		{name: "below range", in: -0.2, want: 0.0},
		{name: "lower bound", in: 0, want: 0},
		{name: "upper bound", in: 1, want: 1},
		{name: "inside", in: 0.42, want: 0.42},
		{name: "nan", in: math.NaN(), want: 0},
		{name: "positive infinity", in: math.Inf(1), want: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Clamp(tc.in))
		})
	}
}

func TestSettingsClampedAndDefaults(t *testing.T) {
	require.Equal(t, Settings{Stability: 0.75, SimilarityBoost: 0.75}, DefaultSettings())
	require.Equal(t, Settings{Stability: 1, SimilarityBoost: 0}, Settings{Stability: 3, SimilarityBoost: -1}.Clamped())
}

func TestVoiceLabelFallsBackToID(t *testing.T) {
	require.Equal(t, "Rachel", Voice{ID: "21m00", Name: "Rachel"}.Label())
	require.Equal(t, "21m00", Voice{ID: "21m00"}.Label())
}
