// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"filealchemist/internal/models"
)

var (
	ErrNotFound  = errors.New("job not found")
	ErrDuplicate = errors.New("job with the same fingerprint already exists")
)

const jobColumns = `id, name, size, last_modified, mime_type, status, settings, original_path, output_path,
	result_width, result_height, result_type, result_size, error, created_at, updated_at`

// Storage keeps jobs in PostgreSQL.
type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB // For migrations
}

func NewStorage(ctx context.Context, dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{pool: pool, db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

func (s *Storage) SaveJob(ctx context.Context, job *models.Job) error {
	const op = "storage.SaveJob"

	settings, err := json.Marshal(job.Settings)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, name, size, last_modified, mime_type, status, settings, original_path, output_path, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.Name, job.Size, job.LastModified, job.MimeType, string(job.Status), settings,
		job.OriginalPath, job.OutputPath, job.Error, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	const op = "storage.GetJob"

	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return job, nil
}

// ListJobs returns every job in admission order.
func (s *Storage) ListJobs(ctx context.Context) ([]*models.Job, error) {
	const op = "storage.ListJobs"

	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}

func (s *Storage) UpdateJob(ctx context.Context, job *models.Job) error {
	const op = "storage.UpdateJob"

	var (
		width, height *int
		resultType    *string
		resultSize    *int64
	)
	if job.Result != nil {
		width, height = &job.Result.Width, &job.Result.Height
		resultType, resultSize = &job.Result.OutputType, &job.Result.Size
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, output_path = $3, result_width = $4, result_height = $5,
		 result_type = $6, result_size = $7, error = $8, updated_at = $9 WHERE id = $1`,
		job.ID, string(job.Status), job.OutputPath, width, height, resultType, resultSize, job.Error, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func (s *Storage) DeleteJob(ctx context.Context, id uuid.UUID) error {
	const op = "storage.DeleteJob"
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func (s *Storage) DeleteAll(ctx context.Context) error {
	const op = "storage.DeleteAll"
	if _, err := s.pool.Exec(ctx, `DELETE FROM jobs`); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		job           models.Job
		status        string
		settings      []byte
		width, height *int
		resultType    *string
		resultSize    *int64
	)
	err := row.Scan(&job.ID, &job.Name, &job.Size, &job.LastModified, &job.MimeType, &status, &settings,
		&job.OriginalPath, &job.OutputPath, &width, &height, &resultType, &resultSize, &job.Error,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}

	job.Status = models.JobStatus(status)
	if !job.Status.Valid() {
		return nil, fmt.Errorf("unknown job status %q", status)
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &job.Settings); err != nil {
			return nil, err
		}
	}
	if width != nil && height != nil && resultType != nil && resultSize != nil {
		job.Result = &models.ResultInfo{Width: *width, Height: *height, OutputType: *resultType, Size: *resultSize}
	}
	return &job, nil
}
