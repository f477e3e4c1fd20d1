package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/flowgen/internal/domain"
)

// RequestStore — хранилище заявок на запуск.
type RequestStore interface {
	Create(ctx context.Context, req *domain.RunRequest) error
	GetByID(ctx context.Context, id string) (*domain.RunRequest, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.RunRequest, error)
	ListPending(ctx context.Context, limit int) ([]domain.RunRequest, error)
	MarkRunning(ctx context.Context, req *domain.RunRequest) error
	MarkDone(ctx context.Context, req *domain.RunRequest) error
}

// RequestRepo — заявки на запуск в PostgreSQL.
type RequestRepo struct {
	pool *pgxpool.Pool
}

var _ RequestStore = (*RequestRepo)(nil)

// NewRequestRepo создаёт новый RequestRepo.
func NewRequestRepo(pool *pgxpool.Pool) *RequestRepo {
	return &RequestRepo{pool: pool}
}

const requestColumns = `
	id, flow_id, status, input, variables, secret_references, trace_id,
	idempotency_key, schedule_id, created_at, started_at, finished_at
`

// Create создаёт заявку.
// Повтор ключа идемпотентности возвращает ErrAlreadyExists.
func (r *RequestRepo) Create(ctx context.Context, req *domain.RunRequest) error {
	input, err := json.Marshal(req.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	variables, err := json.Marshal(req.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}
	secrets, err := json.Marshal(req.SecretReferences)
	if err != nil {
		return fmt.Errorf("marshal secret references: %w", err)
	}

	query := `INSERT INTO run_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = r.pool.Exec(ctx, query,
		req.ID,
		req.FlowID,
		req.Status,
		input,
		variables,
		secrets,
		req.TraceID,
		nullString(req.IdempotencyKey),
		nullString(req.ScheduleID),
		req.CreatedAt,
		req.StartedAt,
		req.FinishedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: request %s", ErrAlreadyExists, req.ID)
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// GetByID возвращает заявку по ID.
func (r *RequestRepo) GetByID(ctx context.Context, id string) (*domain.RunRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM run_requests WHERE id = $1`
	return scanRequest(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает заявку по ключу идемпотентности.
func (r *RequestRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.RunRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM run_requests WHERE idempotency_key = $1`
	return scanRequest(r.pool.QueryRow(ctx, query, key))
}

// ListPending возвращает заявки PENDING, старые первыми.
func (r *RequestRepo) ListPending(ctx context.Context, limit int) ([]domain.RunRequest, error) {
	query := `SELECT ` + requestColumns + `
		FROM run_requests
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var requests []domain.RunRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// MarkRunning атомарно переводит заявку PENDING → RUNNING.
// Если заявку уже взял другой воркер, возвращает ErrInvalidState.
func (r *RequestRepo) MarkRunning(ctx context.Context, req *domain.RunRequest) error {
	req.MarkRunning()
	result, err := r.pool.Exec(ctx, `
		UPDATE run_requests SET status = $2, started_at = $3
		WHERE id = $1 AND status = 'PENDING'
	`, req.ID, req.Status, req.StartedAt)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: request %s is not pending", ErrInvalidState, req.ID)
	}
	return nil
}

// MarkDone переводит заявку в DONE.
func (r *RequestRepo) MarkDone(ctx context.Context, req *domain.RunRequest) error {
	req.MarkDone()
	result, err := r.pool.Exec(ctx, `
		UPDATE run_requests SET status = $2, finished_at = $3 WHERE id = $1
	`, req.ID, req.Status, req.FinishedAt)
	if err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRequest(row scanner) (*domain.RunRequest, error) {
	var req domain.RunRequest
	var input, variables, secrets []byte
	var idempotencyKey, scheduleID *string

	err := row.Scan(
		&req.ID,
		&req.FlowID,
		&req.Status,
		&input,
		&variables,
		&secrets,
		&req.TraceID,
		&idempotencyKey,
		&scheduleID,
		&req.CreatedAt,
		&req.StartedAt,
		&req.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}

	for _, field := range []struct {
		raw []byte
		dst any
	}{
		{input, &req.Input},
		{variables, &req.Variables},
		{secrets, &req.SecretReferences},
	} {
		if field.raw == nil {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return nil, fmt.Errorf("unmarshal request: %w", err)
		}
	}

	req.IdempotencyKey = derefString(idempotencyKey)
	req.ScheduleID = derefString(scheduleID)
	return &req, nil
}
