package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/lamim/programforge/internal/catalog"
	"github.com/lamim/programforge/pkg/models"
)

// ListExercises returns the whole catalog ordered by id
func (s *Store) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, equipment, difficulty, movement, body_regions
		FROM exercises
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("select exercises: %w", err)
	}
	defer rows.Close()

	var out []models.Exercise
	for rows.Next() {
		var e models.Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.Equipment, &e.Difficulty, &e.Movement, pq.Array(&e.BodyRegions)); err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercises: %w", err)
	}
	return out, nil
}

// ResolveProfile loads a client profile's constraints
func (s *Store) ResolveProfile(ctx context.Context, id string) (models.Constraints, error) {
	var c models.Constraints
	err := s.db.QueryRowContext(ctx, `
		SELECT equipment, level, exclusions, aversions FROM client_profiles WHERE id = $1
	`, id).Scan(pq.Array(&c.Equipment), &c.Level, pq.Array(&c.Exclusions), pq.Array(&c.Aversions))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Constraints{}, fmt.Errorf("%w: %s", catalog.ErrProfileNotFound, id)
	}
	if err != nil {
		return models.Constraints{}, fmt.Errorf("select profile %s: %w", id, err)
	}
	return c, nil
}

// UpsertExercises seeds or refreshes catalog rows in one transaction
func (s *Store) UpsertExercises(ctx context.Context, exercises []models.Exercise) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, e := range exercises {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO exercises (id, name, category, equipment, difficulty, movement, body_regions)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, category = EXCLUDED.category, equipment = EXCLUDED.equipment,
				difficulty = EXCLUDED.difficulty, movement = EXCLUDED.movement, body_regions = EXCLUDED.body_regions
		`, e.ID, e.Name, e.Category, e.Equipment, e.Difficulty, e.Movement, pq.Array(e.BodyRegions))
		if err != nil {
			return fmt.Errorf("upsert exercise %s: %w", e.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit exercises: %w", err)
	}
	return nil
}

// UpsertProfiles seeds or refreshes client profiles
func (s *Store) UpsertProfiles(ctx context.Context, profiles map[string]models.Constraints) error {
	for id, c := range profiles {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO client_profiles (id, equipment, level, exclusions, aversions)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET equipment = EXCLUDED.equipment, level = EXCLUDED.level,
				exclusions = EXCLUDED.exclusions, aversions = EXCLUDED.aversions
		`, id, pq.Array(c.Equipment), c.Level, pq.Array(c.Exclusions), pq.Array(c.Aversions))
		if err != nil {
			return fmt.Errorf("upsert profile %s: %w", id, err)
		}
	}
	return nil
}
