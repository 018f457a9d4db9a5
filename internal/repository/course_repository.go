package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/training_scheduler/internal/model"
	"github.com/Freeeeeet/training_scheduler/internal/repository/base"
)

type CourseRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewCourseRepository(pool *pgxpool.Pool, logger *zap.Logger) *CourseRepository {
	return &CourseRepository{Repository: base.NewRepository(pool), logger: logger}
}

func (r *CourseRepository) Create(ctx context.Context, c *model.Course) error {
	if c.Status == "" {
		c.Status = model.CourseStatusDraft
	}
	query := `
		INSERT INTO courses (name, start_date, end_date, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.QueryRow(ctx, query, c.Name, model.DateOnly(c.StartDate), model.DateOnly(c.EndDate), string(c.Status)).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// GetByID returns nil when the course does not exist.
func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*model.Course, error) {
	query := `
		SELECT id, name, start_date, end_date, status
		FROM courses
		WHERE id = $1
	`
	c, err := scanCourse(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get course by id: %w", err)
	}
	return c, nil
}

// GetByStatus returns the courses in any of the given statuses.
func (r *CourseRepository) GetByStatus(ctx context.Context, statuses ...model.CourseStatus) ([]model.Course, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	query := `
		SELECT id, name, start_date, end_date, status
		FROM courses
		WHERE status = ANY($1)
		ORDER BY start_date, id
	`
	rows, err := r.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("get courses by status: %w", err)
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return courses, nil
}

// UpdateStatus moves a course from one status to the next. It returns false
// when the course was not in the expected status.
func (r *CourseRepository) UpdateStatus(ctx context.Context, id int64, from, to model.CourseStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, model.Invalid(model.Ref("course", id), "status cannot move from %s to %s", from, to)
	}

	affected, err := r.ExecAffected(ctx, `
		UPDATE courses
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("update course status: %w", err)
	}

	if affected > 0 {
		r.logger.Info("Course status changed",
			zap.Int64("course_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
	}
	return affected > 0, nil
}

func scanCourse(row pgx.Row) (*model.Course, error) {
	var (
		c      model.Course
		status string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.StartDate, &c.EndDate, &status); err != nil {
		return nil, err
	}
	c.Status = model.CourseStatus(status)
	return &c, nil
}

type TeamRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewTeamRepository(pool *pgxpool.Pool, logger *zap.Logger) *TeamRepository {
	return &TeamRepository{Repository: base.NewRepository(pool), logger: logger}
}

func (r *TeamRepository) Create(ctx context.Context, t *model.Team) error {
	query := `
		INSERT INTO teams (name, program, course_id, university_id, team_leader_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.QueryRow(ctx, query, t.Name, string(t.Program), t.CourseID, t.UniversityID, t.TeamLeaderID).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

// GetAll returns every team. Assignment needs teams of other courses to
// validate the sessions they already hold.
func (r *TeamRepository) GetAll(ctx context.Context) ([]model.Team, error) {
	return r.list(ctx, `
		SELECT id, name, program, course_id, university_id, team_leader_id
		FROM teams
		ORDER BY id
	`)
}

func (r *TeamRepository) GetByCourse(ctx context.Context, courseID int64) ([]model.Team, error) {
	return r.list(ctx, `
		SELECT id, name, program, course_id, university_id, team_leader_id
		FROM teams
		WHERE course_id = $1
		ORDER BY id
	`, courseID)
}

func (r *TeamRepository) list(ctx context.Context, query string, args ...any) ([]model.Team, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get teams: %w", err)
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		var (
			t       model.Team
			program string
		)
		if err := rows.Scan(&t.ID, &t.Name, &program, &t.CourseID, &t.UniversityID, &t.TeamLeaderID); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		t.Program = model.Program(program)
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate teams: %w", err)
	}
	return teams, nil
}

type CurriculumRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewCurriculumRepository(pool *pgxpool.Pool, logger *zap.Logger) *CurriculumRepository {
	return &CurriculumRepository{Repository: base.NewRepository(pool), logger: logger}
}

// Create inserts a curriculum and its ordered subjects.
func (r *CurriculumRepository) Create(ctx context.Context, c *model.Curriculum) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO curricula (name, program) VALUES ($1, $2) RETURNING id`,
			c.Name, string(c.Program)).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("create curriculum: %w", err)
		}

		batch := &pgx.Batch{}
		for pos, subjectID := range c.SubjectIDs {
			batch.Queue(
				`INSERT INTO curriculum_subjects (curriculum_id, position, subject_id) VALUES ($1, $2, $3)`,
				c.ID, pos, subjectID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("add curriculum subjects: %w", err)
		}
		return nil
	})
}

func (r *CurriculumRepository) GetAll(ctx context.Context) ([]model.Curriculum, error) {
	query := `
		SELECT c.id, c.name, c.program,
		       COALESCE(array_agg(cs.subject_id ORDER BY cs.position) FILTER (WHERE cs.subject_id IS NOT NULL), '{}')
		FROM curricula c
		LEFT JOIN curriculum_subjects cs ON cs.curriculum_id = c.id
		GROUP BY c.id
		ORDER BY c.id
	`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get curricula: %w", err)
	}
	defer rows.Close()

	var curricula []model.Curriculum
	for rows.Next() {
		var (
			c       model.Curriculum
			program string
		)
		if err := rows.Scan(&c.ID, &c.Name, &program, &c.SubjectIDs); err != nil {
			return nil, fmt.Errorf("scan curriculum: %w", err)
		}
		c.Program = model.Program(program)
		curricula = append(curricula, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate curricula: %w", err)
	}
	return curricula, nil
}
