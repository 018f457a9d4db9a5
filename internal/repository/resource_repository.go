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

type LecturerRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewLecturerRepository(pool *pgxpool.Pool, logger *zap.Logger) *LecturerRepository {
	return &LecturerRepository{Repository: base.NewRepository(pool), logger: logger}
}

// Create inserts a lecturer together with its specializations.
func (r *LecturerRepository) Create(ctx context.Context, l *model.Lecturer) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO lecturers (full_name, faculty, max_sessions_per_week)
			VALUES ($1, $2, $3)
			RETURNING id
		`
		if err := tx.QueryRow(ctx, query, l.FullName, string(l.Faculty), l.MaxSessionsPerWeek).Scan(&l.ID); err != nil {
			return fmt.Errorf("create lecturer: %w", err)
		}
		for _, subjectID := range l.SpecializationIDs {
			_, err := tx.Exec(ctx,
				`INSERT INTO lecturer_specializations (lecturer_id, subject_id) VALUES ($1, $2)`,
				l.ID, subjectID)
			if err != nil {
				return fmt.Errorf("add specialization %d: %w", subjectID, err)
			}
		}
		r.logger.Debug("Lecturer created",
			zap.Int64("lecturer_id", l.ID),
			zap.Int("specializations", len(l.SpecializationIDs)))
		return nil
	})
}

func (r *LecturerRepository) GetAll(ctx context.Context) ([]model.Lecturer, error) {
	query := `
		SELECT l.id, l.full_name, l.faculty, l.max_sessions_per_week,
		       COALESCE(array_agg(s.subject_id ORDER BY s.subject_id) FILTER (WHERE s.subject_id IS NOT NULL), '{}')
		FROM lecturers l
		LEFT JOIN lecturer_specializations s ON s.lecturer_id = l.id
		GROUP BY l.id
		ORDER BY l.id
	`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get lecturers: %w", err)
	}
	defer rows.Close()

	var lecturers []model.Lecturer
	for rows.Next() {
		var (
			l       model.Lecturer
			faculty string
		)
		if err := rows.Scan(&l.ID, &l.FullName, &faculty, &l.MaxSessionsPerWeek, &l.SpecializationIDs); err != nil {
			return nil, fmt.Errorf("scan lecturer: %w", err)
		}
		l.Faculty = model.Category(faculty)
		lecturers = append(lecturers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lecturers: %w", err)
	}

	return lecturers, nil
}

type LocationRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewLocationRepository(pool *pgxpool.Pool, logger *zap.Logger) *LocationRepository {
	return &LocationRepository{Repository: base.NewRepository(pool), logger: logger}
}

// Create inserts a location together with the subjects it may host.
func (r *LocationRepository) Create(ctx context.Context, l *model.Location) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO locations (name, capacity)
			VALUES ($1, $2)
			RETURNING id
		`
		if err := tx.QueryRow(ctx, query, l.Name, l.Capacity).Scan(&l.ID); err != nil {
			return fmt.Errorf("create location: %w", err)
		}
		for _, subjectID := range l.AffinityIDs {
			_, err := tx.Exec(ctx,
				`INSERT INTO location_subjects (location_id, subject_id) VALUES ($1, $2)`,
				l.ID, subjectID)
			if err != nil {
				return fmt.Errorf("add affinity %d: %w", subjectID, err)
			}
		}
		return nil
	})
}

func (r *LocationRepository) GetAll(ctx context.Context) ([]model.Location, error) {
	query := `
		SELECT l.id, l.name, l.capacity,
		       COALESCE(array_agg(s.subject_id ORDER BY s.subject_id) FILTER (WHERE s.subject_id IS NOT NULL), '{}')
		FROM locations l
		LEFT JOIN location_subjects s ON s.location_id = l.id
		GROUP BY l.id
		ORDER BY l.id
	`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Capacity, &l.AffinityIDs); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}

	return locations, nil
}

type HolidayRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewHolidayRepository(pool *pgxpool.Pool, logger *zap.Logger) *HolidayRepository {
	return &HolidayRepository{Repository: base.NewRepository(pool), logger: logger}
}

// Create inserts a holiday. An existing holiday on the same date is renamed.
func (r *HolidayRepository) Create(ctx context.Context, h *model.Holiday) error {
	query := `
		INSERT INTO holidays (date, name)
		VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`
	if err := r.QueryRow(ctx, query, model.DateOnly(h.Date), h.Name).Scan(&h.ID); err != nil {
		return fmt.Errorf("create holiday: %w", err)
	}
	return nil
}

// GetInRange returns the holidays between from and to inclusive.
func (r *HolidayRepository) GetInRange(ctx context.Context, from, to time.Time) ([]model.Holiday, error) {
	query := `
		SELECT id, date, name
		FROM holidays
		WHERE date BETWEEN $1 AND $2
		ORDER BY date
	`

	rows, err := r.Query(ctx, query, model.DateOnly(from), model.DateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("get holidays: %w", err)
	}
	defer rows.Close()

	var holidays []model.Holiday
	for rows.Next() {
		var h model.Holiday
		if err := rows.Scan(&h.ID, &h.Date, &h.Name); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		holidays = append(holidays, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holidays: %w", err)
	}

	return holidays, nil
}
