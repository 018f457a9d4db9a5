package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/training_scheduler/internal/model"
	"github.com/Freeeeeet/training_scheduler/internal/repository/base"
)

type SessionRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewSessionRepository(pool *pgxpool.Pool, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{Repository: base.NewRepository(pool), logger: logger}
}

const sessionColumns = `s.week, s.team_id, s.subject_id, s.date, s.day_of_week, s.session, s.lecturer_id, s.location_id`

// GetByCourse returns every session of the teams of a course in slot order.
func (r *SessionRepository) GetByCourse(ctx context.Context, courseID int64) ([]model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions s
		JOIN teams t ON t.id = s.team_id
		WHERE t.course_id = $1
		ORDER BY s.date,
		         array_position(ARRAY['morning', 'afternoon', 'evening'], s.session),
		         s.team_id
	`
	sessions, err := r.list(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("get sessions by course: %w", err)
	}
	return sessions, nil
}

// GetCommitted returns sessions of other courses between from and to that
// hold at least one resource. Callers pass whole ISO weeks so the weekly cap
// sees every booking of a week.
func (r *SessionRepository) GetCommitted(ctx context.Context, from, to time.Time, excludeCourseID int64) ([]model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions s
		JOIN teams t ON t.id = s.team_id
		WHERE s.date BETWEEN $1 AND $2
		  AND t.course_id <> $3
		  AND (s.lecturer_id IS NOT NULL OR s.location_id IS NOT NULL)
	`
	sessions, err := r.list(ctx, query, model.DateOnly(from), model.DateOnly(to), excludeCourseID)
	if err != nil {
		return nil, fmt.Errorf("get committed sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]model.Session, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var (
			s      model.Session
			period string
		)
		err := rows.Scan(&s.Week, &s.TeamID, &s.SubjectID, &s.Date, &s.DayOfWeek, &period, &s.LecturerID, &s.LocationID)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Period = model.Period(period)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// SaveSkeletons inserts new sessions. Sessions whose (team, date, period)
// already exists are left as stored. It returns the number inserted.
func (r *SessionRepository) SaveSkeletons(ctx context.Context, sessions []model.Session) (int64, error) {
	if len(sessions) == 0 {
		return 0, nil
	}

	var inserted int64
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i := range sessions {
			s := &sessions[i]
			batch.Queue(`
				INSERT INTO sessions (week, team_id, subject_id, date, day_of_week, session)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (team_id, date, session) DO NOTHING
			`, s.Week, s.TeamID, s.SubjectID, model.DateOnly(s.Date), s.DayOfWeek, string(s.Period))
		}

		br := tx.SendBatch(ctx, batch)
		for range sessions {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("insert session: %w", err)
			}
			inserted += tag.RowsAffected()
		}
		return br.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("save skeletons: %w", err)
	}

	r.logger.Info("Skeleton sessions saved",
		zap.Int("requested", len(sessions)),
		zap.Int64("inserted", inserted))
	return inserted, nil
}

// SaveAssignments stores the resources of sessions. A stored session that
// already holds a lecturer or a location is not overwritten. It returns the
// number of rows updated.
func (r *SessionRepository) SaveAssignments(ctx context.Context, sessions []model.Session) (int64, error) {
	var updated int64
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		for i := range sessions {
			s := &sessions[i]
			if !s.IsResourced() {
				continue
			}
			tag, err := tx.Exec(ctx, `
				UPDATE sessions
				SET lecturer_id = $1, location_id = $2, updated_at = NOW()
				WHERE team_id = $3 AND date = $4 AND session = $5
				  AND lecturer_id IS NULL AND location_id IS NULL
			`, *s.LecturerID, *s.LocationID, s.TeamID, model.DateOnly(s.Date), string(s.Period))
			if err != nil {
				return fmt.Errorf("update %s: %w", s.Key(), err)
			}
			if tag.RowsAffected() == 0 {
				r.logger.Warn("Session already resourced or missing, not updated",
					zap.Stringer("session", s.Key()))
			}
			updated += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("save assignments: %w", err)
	}
	return updated, nil
}

// DeleteByCourse removes every session of the teams of a course and returns
// the number removed.
func (r *SessionRepository) DeleteByCourse(ctx context.Context, courseID int64) (int64, error) {
	deleted, err := r.ExecAffected(ctx, `
		DELETE FROM sessions s
		USING teams t
		WHERE t.id = s.team_id AND t.course_id = $1
	`, courseID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions by course: %w", err)
	}

	r.logger.Info("Course sessions deleted",
		zap.Int64("course_id", courseID),
		zap.Int64("deleted", deleted))
	return deleted, nil
}

// CoursesWithUnresourced lists courses that still have sessions missing a
// lecturer or a location.
func (r *SessionRepository) CoursesWithUnresourced(ctx context.Context) ([]int64, error) {
	rows, err := r.Query(ctx, `
		SELECT DISTINCT t.course_id
		FROM sessions s
		JOIN teams t ON t.id = s.team_id
		WHERE s.lecturer_id IS NULL OR s.location_id IS NULL
		ORDER BY t.course_id
	`)
	if err != nil {
		return nil, fmt.Errorf("get courses with unresourced sessions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan course id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
