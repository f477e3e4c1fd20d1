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

// FlowStore — хранилище документов flow.
type FlowStore interface {
	Get(ctx context.Context, id string) (*domain.Flow, error)
	List(ctx context.Context) ([]domain.Flow, error)
	Save(ctx context.Context, flow *domain.Flow) error
	Delete(ctx context.Context, id string) error
}

// FlowRepo — хранилище flow в PostgreSQL.
// Документ хранится целиком в JSONB.
type FlowRepo struct {
	pool *pgxpool.Pool
}

var _ FlowStore = (*FlowRepo)(nil)

// NewFlowRepo создаёт новый FlowRepo.
func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

// Get возвращает flow по ID.
func (r *FlowRepo) Get(ctx context.Context, id string) (*domain.Flow, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT doc FROM flows WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flow: %w", err)
	}

	var flow domain.Flow
	if err := json.Unmarshal(doc, &flow); err != nil {
		return nil, fmt.Errorf("unmarshal flow: %w", err)
	}
	return &flow, nil
}

// List возвращает все flow, последние изменённые первыми.
func (r *FlowRepo) List(ctx context.Context) ([]domain.Flow, error) {
	rows, err := r.pool.Query(ctx, `SELECT doc FROM flows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.Flow
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		var flow domain.Flow
		if err := json.Unmarshal(doc, &flow); err != nil {
			return nil, fmt.Errorf("unmarshal flow: %w", err)
		}
		flows = append(flows, flow)
	}
	return flows, rows.Err()
}

// Save создаёт или перезаписывает flow.
func (r *FlowRepo) Save(ctx context.Context, flow *domain.Flow) error {
	doc, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("marshal flow: %w", err)
	}

	query := `
		INSERT INTO flows (id, name, doc, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, doc = EXCLUDED.doc, updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, flow.ID, flow.Name, doc); err != nil {
		return fmt.Errorf("save flow: %w", err)
	}
	return nil
}

// Delete удаляет flow (каскадно удалит schedules).
func (r *FlowRepo) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
