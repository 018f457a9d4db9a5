package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/training_scheduler/internal/model"
	"github.com/Freeeeeet/training_scheduler/internal/repository/base"
)

type SubjectRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewSubjectRepository(pool *pgxpool.Pool, logger *zap.Logger) *SubjectRepository {
	return &SubjectRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// Create inserts a subject and fills in its id.
func (r *SubjectRepository) Create(ctx context.Context, subject *model.Subject) error {
	query := `
		INSERT INTO subjects (name, category, prerequisite_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := r.QueryRow(ctx, query, subject.Name, string(subject.Category), subject.PrerequisiteID).Scan(&subject.ID)
	if err != nil {
		r.logger.Error("Failed to insert subject",
			zap.String("name", subject.Name),
			zap.Error(err))
		return fmt.Errorf("create subject: %w", err)
	}

	r.logger.Debug("Subject created", zap.Int64("subject_id", subject.ID))
	return nil
}

// GetByID returns nil when the subject does not exist.
func (r *SubjectRepository) GetByID(ctx context.Context, id int64) (*model.Subject, error) {
	query := `
		SELECT id, name, category, prerequisite_id
		FROM subjects
		WHERE id = $1
	`

	var (
		subject  model.Subject
		category string
	)
	err := r.QueryRow(ctx, query, id).Scan(&subject.ID, &subject.Name, &category, &subject.PrerequisiteID)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get subject by id: %w", err)
	}
	subject.Category = model.Category(category)

	return &subject, nil
}

func (r *SubjectRepository) GetAll(ctx context.Context) ([]model.Subject, error) {
	query := `
		SELECT id, name, category, prerequisite_id
		FROM subjects
		ORDER BY id
	`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get subjects: %w", err)
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var (
			subject  model.Subject
			category string
		)
		if err := rows.Scan(&subject.ID, &subject.Name, &category, &subject.PrerequisiteID); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subject.Category = model.Category(category)
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}

	return subjects, nil
}
