package catalog

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lamim/programforge/pkg/models"
)

type catalogDocument struct {
	Exercises []models.Exercise `yaml:"exercises"`
}

type profilesDocument struct {
	Profiles map[string]models.Constraints `yaml:"profiles"`
}

// ParseCatalogYAML decodes a catalog. Both `exercises: [...]` and a bare list are accepted.
func ParseCatalogYAML(data []byte) ([]models.Exercise, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("catalog: payload is empty")
	}

	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		var list []models.Exercise
		if listErr := yaml.Unmarshal(data, &list); listErr != nil {
			return nil, fmt.Errorf("catalog: decode exercises: %w", err)
		}
		doc.Exercises = list
	}
	return normalizeExercises(doc.Exercises)
}

func normalizeExercises(in []models.Exercise) ([]models.Exercise, error) {
	seen := make(map[string]bool, len(in))
	out := make([]models.Exercise, 0, len(in))
	for i, e := range in {
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" {
			return nil, fmt.Errorf("catalog: exercise %d has no id", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("catalog: duplicate exercise id %q", e.ID)
		}
		seen[e.ID] = true
		if strings.TrimSpace(e.Name) == "" {
			e.Name = e.ID
		}
		e.Difficulty = models.Level(strings.ToLower(strings.TrimSpace(string(e.Difficulty))))
		e.Movement = strings.ToLower(strings.TrimSpace(e.Movement))
		e.Category = strings.ToLower(strings.TrimSpace(e.Category))
		out = append(out, e)
	}
	return out, nil
}

// LoadCatalogFile loads a catalog from a YAML file
func LoadCatalogFile(path string) ([]models.Exercise, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	exercises, err := ParseCatalogYAML(content)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return exercises, nil
}

// ParseProfilesYAML decodes a `profiles:` map keyed by profile id
func ParseProfilesYAML(data []byte) (map[string]models.Constraints, error) {
	var doc profilesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode profiles: %w", err)
	}
	for id, c := range doc.Profiles {
		c.Level = models.Level(strings.ToLower(strings.TrimSpace(string(c.Level))))
		doc.Profiles[id] = c
	}
	return doc.Profiles, nil
}

// LoadProfilesFile loads client profiles from a YAML file
func LoadProfilesFile(path string) (map[string]models.Constraints, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	profiles, err := ParseProfilesYAML(content)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return profiles, nil
}

// ParseRequestYAML decodes a program request
func ParseRequestYAML(data []byte) (models.ProgramRequest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return models.ProgramRequest{}, fmt.Errorf("catalog: request payload is empty")
	}
	var req models.ProgramRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return models.ProgramRequest{}, fmt.Errorf("catalog: decode request: %w", err)
	}
	return req, nil
}

// LoadRequestFile loads a program request from a YAML (or JSON) file
func LoadRequestFile(path string) (models.ProgramRequest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return models.ProgramRequest{}, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	req, err := ParseRequestYAML(content)
	if err != nil {
		return models.ProgramRequest{}, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return req, nil
}
