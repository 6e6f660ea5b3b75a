package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/attend/internal/models"
)

// UpsertSignature stores the student's reference vector, replacing any previous one.
func (s *PostgresStore) UpsertSignature(ctx context.Context, code string, vector []float32, numImages int) (*models.Signature, error) {
	return upsertSignature(ctx, s.pool, code, vector, numImages)
}

// SaveEnrollment upserts the student and their signature in one transaction.
func (s *PostgresStore) SaveEnrollment(ctx context.Context, st *models.Student, vector []float32, numImages int) (*models.Student, *models.Signature, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	student, err := upsertStudent(ctx, tx, st)
	if err != nil {
		return nil, nil, err
	}
	sig, err := upsertSignature(ctx, tx, student.Code, vector, numImages)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit enrollment: %w", err)
	}
	sig.Name = student.Name
	return student, sig, nil
}

func upsertSignature(ctx context.Context, q querier, code string, vector []float32, numImages int) (*models.Signature, error) {
	sig := &models.Signature{StudentCode: code, Vector: vector, NumImages: numImages}
	err := q.QueryRow(ctx, `
		INSERT INTO signatures (student_code, embedding, num_images)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_code) DO UPDATE SET
			embedding  = EXCLUDED.embedding,
			num_images = EXCLUDED.num_images,
			updated_at = now()
		RETURNING created_at, updated_at`,
		code, pgvector.NewVector(vector), numImages,
	).Scan(&sig.CreatedAt, &sig.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert signature: %w", err)
	}
	return sig, nil
}

// GetSignature returns nil, nil when the student has no signature.
func (s *PostgresStore) GetSignature(ctx context.Context, code string) (*models.Signature, error) {
	var (
		sig models.Signature
		vec pgvector.Vector
	)
	err := s.pool.QueryRow(ctx, `
		SELECT sg.student_code, st.name, sg.embedding, sg.num_images, sg.created_at, sg.updated_at
		FROM signatures sg
		JOIN students st ON st.code = sg.student_code
		WHERE sg.student_code = $1`, code,
	).Scan(&sig.StudentCode, &sig.Name, &vec, &sig.NumImages, &sig.CreatedAt, &sig.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get signature: %w", err)
	}
	sig.Vector = vec.Slice()
	return &sig, nil
}

// ListSignatures returns every stored signature ordered by student code.
// withVectors=false skips the vector payload for listing views.
func (s *PostgresStore) ListSignatures(ctx context.Context, withVectors bool) ([]models.Signature, error) {
	cols := `sg.student_code, st.name, NULL::vector, sg.num_images, sg.created_at, sg.updated_at`
	if withVectors {
		cols = `sg.student_code, st.name, sg.embedding, sg.num_images, sg.created_at, sg.updated_at`
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+cols+`
		FROM signatures sg
		JOIN students st ON st.code = sg.student_code
		ORDER BY sg.student_code`)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	defer rows.Close()

	var sigs []models.Signature
	for rows.Next() {
		var (
			sig models.Signature
			vec *pgvector.Vector
		)
		if err := rows.Scan(&sig.StudentCode, &sig.Name, &vec, &sig.NumImages, &sig.CreatedAt, &sig.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		if vec != nil {
			sig.Vector = vec.Slice()
		}
		sigs = append(sigs, sig)
	}
	return sigs, rows.Err()
}
