package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/orchestrator"
)

// RunRepo — журнал событий и снимки run в PostgreSQL.
type RunRepo struct {
	pool *pgxpool.Pool
}

var _ orchestrator.RunRepository = (*RunRepo)(nil)

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// AppendEvent добавляет событие в журнал.
// Повтор (run_id, sequence) возвращает ErrAlreadyExists.
func (r *RunRepo) AppendEvent(ctx context.Context, event domain.ExecutionEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO run_events (run_id, sequence, type, node_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		event.RunID,
		event.Sequence,
		event.Type,
		nullString(event.NodeID),
		payload,
		event.OccurredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: event %s/%d", ErrAlreadyExists, event.RunID, event.Sequence)
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// SaveRunSnapshot сохраняет (перезаписывает) снимок run.
func (r *RunRepo) SaveRunSnapshot(ctx context.Context, run domain.FlowRun) error {
	doc, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO run_snapshots (run_id, flow_id, status, doc, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE
		SET status = EXCLUDED.status, doc = EXCLUDED.doc, finished_at = EXCLUDED.finished_at
	`
	_, err = r.pool.Exec(ctx, query,
		run.RunID,
		run.FlowID,
		run.Status,
		doc,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// EventsByRunID возвращает события run по возрастанию sequence.
func (r *RunRepo) EventsByRunID(ctx context.Context, runID string) ([]domain.ExecutionEvent, error) {
	query := `
		SELECT run_id, sequence, type, node_id, payload, occurred_at
		FROM run_events
		WHERE run_id = $1
		ORDER BY sequence ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.ExecutionEvent
	for rows.Next() {
		var e domain.ExecutionEvent
		var nodeID *string
		var payload []byte
		if err := rows.Scan(&e.RunID, &e.Sequence, &e.Type, &nodeID, &payload, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.NodeID = derefString(nodeID)
		if payload != nil {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// RunSnapshot возвращает снимок run или ErrNotFound.
func (r *RunRepo) RunSnapshot(ctx context.Context, runID string) (*domain.FlowRun, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT doc FROM run_snapshots WHERE run_id = $1`, runID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var run domain.FlowRun
	if err := json.Unmarshal(doc, &run); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &run, nil
}

// ListRunIDs возвращает ID run, последние первыми.
func (r *RunRepo) ListRunIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT run_id FROM run_snapshots ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list run ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
