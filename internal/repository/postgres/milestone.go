package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Rrens/projecthub/internal/domain"
)

// MilestoneRepository handles milestone data access
type MilestoneRepository struct {
	db *DB
}

// NewMilestoneRepository creates a new milestone repository
func NewMilestoneRepository(db *DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

const milestoneColumns = `id, project_id, title, description, due_date, status, created_at, updated_at`

func scanMilestone(row pgx.Row) (*domain.Milestone, error) {
	var m domain.Milestone
	if err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.Title,
		&m.Description,
		&m.DueDate,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a milestone
func (r *MilestoneRepository) Create(ctx context.Context, milestone *domain.Milestone) error {
	query := `INSERT INTO milestones (` + milestoneColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Pool.Exec(ctx, query,
		milestone.ID,
		milestone.ProjectID,
		milestone.Title,
		milestone.Description,
		milestone.DueDate,
		milestone.Status,
		milestone.CreatedAt,
		milestone.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create milestone: %w", err)
	}
	return nil
}

// GetByID retrieves a milestone of a project
func (r *MilestoneRepository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*domain.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1 AND project_id = $2`

	milestone, err := scanMilestone(r.db.Pool.QueryRow(ctx, query, id, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}
	return milestone, nil
}

// ListByProject lists the milestones of a project by due date
func (r *MilestoneRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE project_id = $1 ORDER BY due_date ASC NULLS LAST, created_at ASC`

	rows, err := r.db.Pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	milestones := []domain.Milestone{}
	for rows.Next() {
		milestone, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		milestones = append(milestones, *milestone)
	}
	return milestones, rows.Err()
}

// Update writes every mutable column of milestone
func (r *MilestoneRepository) Update(ctx context.Context, milestone *domain.Milestone) error {
	query := `
		UPDATE milestones
		SET title = $3, description = $4, due_date = $5, status = $6, updated_at = $7
		WHERE id = $1 AND project_id = $2
	`

	_, err := r.db.Pool.Exec(ctx, query,
		milestone.ID,
		milestone.ProjectID,
		milestone.Title,
		milestone.Description,
		milestone.DueDate,
		milestone.Status,
		milestone.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update milestone: %w", err)
	}
	return nil
}

// Delete deletes a milestone of a project. Tasks keep existing with their
// milestone reference cleared by the foreign key.
func (r *MilestoneRepository) Delete(ctx context.Context, projectID, id uuid.UUID) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM milestones WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to delete milestone: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
