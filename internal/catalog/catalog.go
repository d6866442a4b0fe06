// Package catalog supplies the exercise catalog and client profiles the
// candidate filter runs against.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lamim/programforge/pkg/models"
)

// ErrProfileNotFound is returned when a profile id is unknown
var ErrProfileNotFound = errors.New("catalog: profile not found")

// Provider lists the full exercise catalog
type Provider interface {
	ListExercises(ctx context.Context) ([]models.Exercise, error)
}

// ProfileResolver turns a client profile id into filter constraints
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, id string) (models.Constraints, error)
}

// Memory is an in-process catalog and profile source
type Memory struct {
	exercises []models.Exercise
	profiles  map[string]models.Constraints
}

// NewMemory creates a memory catalog. Profiles may be nil.
func NewMemory(exercises []models.Exercise, profiles map[string]models.Constraints) *Memory {
	if profiles == nil {
		profiles = map[string]models.Constraints{}
	}
	return &Memory{exercises: exercises, profiles: profiles}
}

func (m *Memory) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]models.Exercise(nil), m.exercises...), nil
}

func (m *Memory) ResolveProfile(ctx context.Context, id string) (models.Constraints, error) {
	if err := ctx.Err(); err != nil {
		return models.Constraints{}, err
	}
	c, ok := m.profiles[id]
	if !ok {
		return models.Constraints{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return c, nil
}

// ProfileIDs returns the known profile ids in sorted order
func (m *Memory) ProfileIDs() []string {
	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveConstraints picks the filter input for a request. Inline constraints
// win over a profile reference; a request with neither gets zero constraints.
func ResolveConstraints(ctx context.Context, req models.ProgramRequest, profiles ProfileResolver) (models.Constraints, error) {
	if req.Constraints != nil {
		return *req.Constraints, nil
	}
	if req.ProfileID == "" {
		return models.Constraints{}, nil
	}
	if profiles == nil {
		return models.Constraints{}, fmt.Errorf("%w: %s (no profile source configured)", ErrProfileNotFound, req.ProfileID)
	}
	return profiles.ResolveProfile(ctx, req.ProfileID)
}
