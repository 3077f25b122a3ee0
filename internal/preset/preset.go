// Package preset manages named voice parameter bundles: a fixed built-in table
// plus user-created custom presets persisted through the settings store.
package preset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rbright/voiceassist/internal/voice"
)

// Category groups presets for display. Only CategoryCustom is user-editable.
type Category string

const (
	CategoryConversation  Category = "Conversation"
	CategoryNarrative     Category = "Narrative"
	CategoryProfessional  Category = "Professional"
	CategoryAccessibility Category = "Accessibility"
	CategoryCustom        Category = "Custom"
)

var (
	ErrNotCustom   = errors.New("only custom presets can be added or removed")
	ErrDuplicateID = errors.New("preset id already exists")
	ErrNotFound    = errors.New("preset not found")
	ErrEmptyName   = errors.New("preset name must not be empty")
)

// Preset is a reusable bundle of voice synthesis parameters.
type Preset struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Settings    voice.Settings `yaml:"settings"`
	Category    Category       `yaml:"category"`
	Tags        []string       `yaml:"tags"`
}

// IsCustom reports whether the preset is user-owned.
func (p Preset) IsCustom() bool {
	return p.Category == CategoryCustom
}

// matches reports a case-insensitive substring hit on name, description, or any tag.
// needle must already be lowercased.
func (p Preset) matches(needle string) bool {
	if strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// Builtins returns a fresh copy of the built-in preset table.
func Builtins() []Preset {
	return []Preset{
		{
			ID:          "casual-chat",
			Name:        "Casual Chat",
			Description: "Natural, relaxed tone for everyday conversations",
			Settings:    voice.Settings{Stability: 0.65, SimilarityBoost: 0.75},
			Category:    CategoryConversation,
			Tags:        []string{"casual", "friendly", "natural"},
		},
		{
			ID:          "clear-speech",
			Name:        "Clear Speech",
			Description: "Highly articulate for better understanding",
			Settings:    voice.Settings{Stability: 0.85, SimilarityBoost: 0.80},
			Category:    CategoryConversation,
			Tags:        []string{"clear", "articulate", "precise"},
		},
		{
			ID:          "storytelling",
			Name:        "Storytelling",
			Description: "Expressive and dynamic for engaging narratives",
			Settings:    voice.Settings{Stability: 0.55, SimilarityBoost: 0.70},
			Category:    CategoryNarrative,
			Tags:        []string{"expressive", "dynamic", "engaging"},
		},
		{
			ID:          "audiobook",
			Name:        "Audiobook",
			Description: "Consistent and clear for long-form content",
			Settings:    voice.Settings{Stability: 0.80, SimilarityBoost: 0.85},
			Category:    CategoryNarrative,
			Tags:        []string{"consistent", "professional", "clear"},
		},
		{
			ID:          "business",
			Name:        "Business",
			Description: "Professional and authoritative tone",
			Settings:    voice.Settings{Stability: 0.90, SimilarityBoost: 0.80},
			Category:    CategoryProfessional,
			Tags:        []string{"professional", "formal", "business"},
		},
		{
			ID:          "presentation",
			Name:        "Presentation",
			Description: "Engaging yet professional for presentations",
			Settings:    voice.Settings{Stability: 0.75, SimilarityBoost: 0.85},
			Category:    CategoryProfessional,
			Tags:        []string{"presentation", "engaging", "formal"},
		},
		{
			ID:          "screen-reader",
			Name:        "Screen Reader",
			Description: "Maximum clarity and consistency for accessibility",
			Settings:    voice.Settings{Stability: 0.95, SimilarityBoost: 0.90},
			Category:    CategoryAccessibility,
			Tags:        []string{"accessibility", "clear", "consistent"},
		},
		{
			ID:          "learning-support",
			Name:        "Learning Support",
			Description: "Clear and patient tone for educational content",
			Settings:    voice.Settings{Stability: 0.85, SimilarityBoost: 0.85},
			Category:    CategoryAccessibility,
			Tags:        []string{"education", "clear", "patient"},
		},
	}
}

// NewCustom builds a custom preset with a generated id. tags is a
// comma-separated list; blank entries are dropped.
func NewCustom(name, description, tags string, settings voice.Settings) (Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Preset{}, ErrEmptyName
	}
	return Preset{
		ID:          fmt.Sprintf("custom-%s", uuid.NewString()),
		Name:        name,
		Description: strings.TrimSpace(description),
		Settings:    settings.Clamped(),
		Category:    CategoryCustom,
		Tags:        ParseTags(tags),
	}, nil
}

// ParseTags splits a comma-separated tag list.
func ParseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tags = append(tags, part)
	}
	return tags
}
