package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/attend/internal/models"
)

const unknownGroup = "Unknown"

// UpsertStudent creates the student if the code is new, otherwise refreshes the
// name and any non-empty class/section.
func (s *PostgresStore) UpsertStudent(ctx context.Context, st *models.Student) (*models.Student, error) {
	return upsertStudent(ctx, s.pool, st)
}

func upsertStudent(ctx context.Context, q querier, st *models.Student) (*models.Student, error) {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	class, section := st.Class, st.Section
	if class == "" {
		class = unknownGroup
	}
	if section == "" {
		section = unknownGroup
	}

	out := &models.Student{}
	err := q.QueryRow(ctx, `
		INSERT INTO students (id, code, name, class, section)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			name    = EXCLUDED.name,
			class   = CASE WHEN $6 THEN students.class ELSE EXCLUDED.class END,
			section = CASE WHEN $7 THEN students.section ELSE EXCLUDED.section END
		RETURNING id, code, name, class, section, created_at`,
		st.ID, st.Code, st.Name, class, section, st.Class == "", st.Section == "",
	).Scan(&out.ID, &out.Code, &out.Name, &out.Class, &out.Section, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert student: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetStudent(ctx context.Context, code string) (*models.Student, error) {
	st := &models.Student{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, name, class, section, created_at FROM students WHERE code = $1`, code,
	).Scan(&st.ID, &st.Code, &st.Name, &st.Class, &st.Section, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return st, nil
}

// ListStudents returns students ordered by code, optionally filtered by class and section.
func (s *PostgresStore) ListStudents(ctx context.Context, class, section string) ([]models.Student, error) {
	query := `SELECT id, code, name, class, section, created_at FROM students`
	var (
		conds []string
		args  []any
	)
	if class != "" {
		args = append(args, class)
		conds = append(conds, fmt.Sprintf("class = $%d", len(args)))
	}
	if section != "" {
		args = append(args, section)
		conds = append(conds, fmt.Sprintf("section = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY code"

	return s.queryStudents(ctx, query, args...)
}

// SearchStudents matches q against name or code, case-insensitively.
func (s *PostgresStore) SearchStudents(ctx context.Context, q string, limit int) ([]models.Student, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryStudents(ctx, `
		SELECT id, code, name, class, section, created_at FROM students
		WHERE name ILIKE $1 OR code ILIKE $1
		ORDER BY name
		LIMIT $2`, "%"+q+"%", limit)
}

func (s *PostgresStore) queryStudents(ctx context.Context, query string, args ...any) ([]models.Student, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		var st models.Student
		if err := rows.Scan(&st.ID, &st.Code, &st.Name, &st.Class, &st.Section, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}
	return students, rows.Err()
}
