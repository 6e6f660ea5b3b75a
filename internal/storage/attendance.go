package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/attend/internal/models"
)

const attendanceColumns = `id, student_code, name, date::text, period, time, emotion, spoof_status,
	liveness_confidence, recognition_confidence, created_at`

func (s *PostgresStore) AttendanceExists(ctx context.Context, key models.AttendanceKey) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance
			WHERE student_code = $1 AND date = $2::date AND period = $3
		)`, key.StudentCode, key.Date, key.Period).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return exists, nil
}

// InsertAttendance writes the attendance row and its notification in one
// transaction. A duplicate (student, date, period) returns ErrAlreadyMarked and
// leaves no notification behind.
func (s *PostgresStore) InsertAttendance(ctx context.Context, rec *models.Attendance, n *models.Notification) error {
	now := time.Now()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin attendance tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO attendance (id, student_code, name, date, period, time, emotion, spoof_status,
			liveness_confidence, recognition_confidence, created_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.StudentCode, rec.Name, rec.Date, rec.Period, rec.Time, rec.Emotion,
		string(rec.SpoofStatus), rec.LivenessConfidence, rec.RecognitionConfidence, rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyMarked
		}
		return fmt.Errorf("insert attendance: %w", err)
	}

	if n != nil {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		n.CreatedAt = now
		_, err = tx.Exec(ctx, `
			INSERT INTO notifications (id, type, title, message, read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			n.ID, n.Type, n.Title, n.Message, n.Read, n.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyMarked
		}
		return fmt.Errorf("commit attendance: %w", err)
	}
	return nil
}

// ListAttendance returns the marks for a day, newest first. An empty period
// returns every period.
func (s *PostgresStore) ListAttendance(ctx context.Context, date, period string) ([]models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE date = $1::date`
	args := []any{date}
	if period != "" {
		query += ` AND period = $2`
		args = append(args, period)
	}
	query += ` ORDER BY time DESC, student_code`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []models.Attendance
	for rows.Next() {
		var (
			a     models.Attendance
			spoof string
		)
		if err := rows.Scan(&a.ID, &a.StudentCode, &a.Name, &a.Date, &a.Period, &a.Time, &a.Emotion,
			&spoof, &a.LivenessConfidence, &a.RecognitionConfidence, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		a.SpoofStatus = models.SpoofStatus(spoof)
		records = append(records, a)
	}
	return records, rows.Err()
}
