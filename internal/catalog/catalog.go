// Package catalog reads user-defined habits from a YAML file and validates
// habit definitions coming from any outer surface.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/habitflow/internal/apperr"
	"github.com/starford/habitflow/internal/models"
	"github.com/starford/habitflow/internal/sanitize"
)

var idRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

type file struct {
	Habits []models.Habit `yaml:"habits"`
}

// Load reads and parses the catalog at path. An empty path yields no habits.
func Load(path string) ([]models.Habit, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog. Every habit is normalised and validated;
// duplicate ids are rejected. Catalog habits are never flagged IsDefault.
func Parse(data []byte) ([]models.Habit, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Habits))
	out := make([]models.Habit, 0, len(f.Habits))
	for i, h := range f.Habits {
		h = Normalize(h)
		if err := Validate(h); err != nil {
			return nil, fmt.Errorf("catalog: habit %d: %w", i, err)
		}
		if _, dup := seen[h.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate habit id %q: %w", h.ID, apperr.ErrAlreadyExists)
		}
		seen[h.ID] = struct{}{}
		out = append(out, h)
	}
	return out, nil
}

// Normalize strips markup from display text, lowercases the id and the
// category, and clears IsDefault.
func Normalize(h models.Habit) models.Habit {
	h.ID = strings.ToLower(strings.TrimSpace(h.ID))
	h.Name = sanitize.Text(h.Name)
	h.Description = sanitize.Text(h.Description)
	h.Icon = strings.TrimSpace(h.Icon)
	h.Category = models.Category(strings.ToLower(strings.TrimSpace(string(h.Category))))
	h.IsDefault = false
	return h
}

// Validate checks a habit definition. Failures wrap apperr.ErrInvalid.
func Validate(h models.Habit) error {
	err := validation.ValidateStruct(&h,
		validation.Field(&h.ID, validation.Required, validation.Length(1, 64), validation.Match(idRe)),
		validation.Field(&h.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&h.Description, validation.Length(0, 500)),
		validation.Field(&h.Category, validation.Required, validation.In(models.CategoryMind, models.CategoryBusiness)),
	)
	if err != nil {
		return errors.Join(apperr.ErrInvalid, err)
	}
	return nil
}
