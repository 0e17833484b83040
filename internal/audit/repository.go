// Package audit records every install-task mutation in an append-only
// log, keyed by tenant, for traceability and dispute resolution.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Entry struct {
	ID        uuid.UUID       `json:"id"`
	TenantID  uuid.UUID       `json:"tenantId"`
	ActorID   uuid.UUID       `json:"actorId"`
	TaskID    uuid.UUID       `json:"taskId"`
	TaskNo    string          `json:"taskNo"`
	EventName string          `json:"eventName"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

type InsertParams struct {
	TenantID  uuid.UUID
	ActorID   uuid.UUID
	TaskID    uuid.UUID
	TaskNo    string
	EventName string
	Payload   any
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, p InsertParams) error {
	payloadBytes, err := json.Marshal(p.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_log (tenant_id, actor_id, task_id, task_no, event_name, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.TenantID, p.ActorID, p.TaskID, p.TaskNo, p.EventName, payloadBytes,
	)
	return err
}

// ListByTask returns the audit trail for a single task, newest first.
func (r *Repository) ListByTask(ctx context.Context, taskID, tenantID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, actor_id, task_id, task_no, event_name, payload, created_at
		 FROM audit_log
		 WHERE task_id = $1 AND tenant_id = $2
		 ORDER BY created_at DESC`,
		taskID, tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ActorID, &e.TaskID, &e.TaskNo, &e.EventName, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
