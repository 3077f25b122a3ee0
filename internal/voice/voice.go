// Package voice defines the speech-synthesis value types shared across voiceassist.
package voice

// DefaultLevel is the stability and similarity boost used before anything is stored.
const DefaultLevel = 0.75

// Settings is the parameter bundle sent with every synthesis request.
type Settings struct {
	Stability       float64 `yaml:"stability" json:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost" json:"similarity_boost"`
}

// DefaultSettings returns the parameter bundle used when nothing is persisted.
func DefaultSettings() Settings {
	return Settings{Stability: DefaultLevel, SimilarityBoost: DefaultLevel}
}

// Clamped returns s with both values limited to [0,1].
func (s Settings) Clamped() Settings {
	return Settings{Stability: Clamp(s.Stability), SimilarityBoost: Clamp(s.SimilarityBoost)}
}

// Voice is one synthesis voice offered by the speech provider.
type Voice struct {
	ID       string
	Name     string
	Category string
}

// Label renders a voice for CLI listings.
func (v Voice) Label() string {
	if v.Name == "" {
		return v.ID
	}
	return v.Name
}

// Clamp limits v to the closed unit interval. NaN collapses to 0.
func Clamp(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
