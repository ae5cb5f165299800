package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"belgaum-backend/internal/models"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Create(ctx context.Context, a *models.ChatAudit) error {
	query := `
		INSERT INTO chat_audits (id, session_id, user_request, bot_response, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, query, a.ID, a.SessionID, a.UserRequest, a.BotResponse, a.CreatedAt)
	return err
}

// List returns audit rows newest first, optionally filtered by session id.
func (r *AuditRepo) List(ctx context.Context, sessionID string, limit, offset int) ([]*models.ChatAudit, int, error) {
	var args []interface{}
	argIdx := 1

	where := ""
	if sessionID != "" {
		where = fmt.Sprintf("WHERE session_id = $%d", argIdx)
		args = append(args, sessionID)
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM chat_audits "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT id, session_id, user_request, bot_response, created_at
		FROM chat_audits %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	audits := []*models.ChatAudit{}
	for rows.Next() {
		a := &models.ChatAudit{}
		if err := rows.Scan(&a.ID, &a.SessionID, &a.UserRequest, &a.BotResponse, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		audits = append(audits, a)
	}

	return audits, total, rows.Err()
}
