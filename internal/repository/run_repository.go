package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/training_scheduler/internal/model"
	"github.com/Freeeeeet/training_scheduler/internal/repository/base"
)

// RunRepository stores the history of scheduling runs and their skips.
type RunRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewRunRepository(pool *pgxpool.Pool, logger *zap.Logger) *RunRepository {
	return &RunRepository{Repository: base.NewRepository(pool), logger: logger}
}

// Create stores a run and its skipped sessions in one transaction.
func (r *RunRepository) Create(ctx context.Context, run *model.ScheduleRun, skips []model.RunSkip) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO schedule_runs (id, course_id, kind, processed, skipped, started_at, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, run.ID, run.CourseID, string(run.Kind), run.Processed, run.Skipped, run.StartedAt, run.FinishedAt)
		if err != nil {
			return fmt.Errorf("create run: %w", err)
		}

		if len(skips) == 0 {
			return nil
		}
		copied, err := tx.CopyFrom(ctx,
			pgx.Identifier{"schedule_skips"},
			[]string{"run_id", "team_id", "date", "session", "subject_id", "reason", "detail"},
			pgx.CopyFromSlice(len(skips), func(i int) ([]any, error) {
				s := skips[i]
				return []any{run.ID, s.TeamID, model.DateOnly(s.Date), string(s.Period), s.SubjectID, s.Reason, s.Detail}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy run skips: %w", err)
		}

		r.logger.Debug("Run stored",
			zap.String("run_id", run.ID.String()),
			zap.Int64("skips", copied))
		return nil
	})
}

// GetLatest returns the most recent run of a course, or nil.
func (r *RunRepository) GetLatest(ctx context.Context, courseID int64, kind model.RunKind) (*model.ScheduleRun, error) {
	var (
		run     model.ScheduleRun
		kindStr string
	)
	err := r.QueryRow(ctx, `
		SELECT id, course_id, kind, processed, skipped, started_at, finished_at
		FROM schedule_runs
		WHERE course_id = $1 AND kind = $2
		ORDER BY started_at DESC
		LIMIT 1
	`, courseID, string(kind)).Scan(&run.ID, &run.CourseID, &kindStr, &run.Processed, &run.Skipped, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest run: %w", err)
	}
	run.Kind = model.RunKind(kindStr)
	return &run, nil
}

func (r *RunRepository) GetSkips(ctx context.Context, runID uuid.UUID) ([]model.RunSkip, error) {
	rows, err := r.Query(ctx, `
		SELECT run_id, team_id, date, session, subject_id, reason, detail
		FROM schedule_skips
		WHERE run_id = $1
		ORDER BY date, array_position(ARRAY['morning', 'afternoon', 'evening'], session), team_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run skips: %w", err)
	}
	defer rows.Close()

	var skips []model.RunSkip
	for rows.Next() {
		var (
			s      model.RunSkip
			period string
		)
		if err := rows.Scan(&s.RunID, &s.TeamID, &s.Date, &period, &s.SubjectID, &s.Reason, &s.Detail); err != nil {
			return nil, fmt.Errorf("scan run skip: %w", err)
		}
		s.Period = model.Period(period)
		skips = append(skips, s)
	}
	return skips, rows.Err()
}
