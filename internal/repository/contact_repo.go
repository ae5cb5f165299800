package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"belgaum-backend/internal/models"
)

type ContactRepo struct {
	pool *pgxpool.Pool
}

func NewContactRepo(pool *pgxpool.Pool) *ContactRepo {
	return &ContactRepo{pool: pool}
}

func (r *ContactRepo) Create(ctx context.Context, c *models.ContactRequest) error {
	query := `
		INSERT INTO contact_requests (id, full_name, email, phone, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	c.ID = uuid.New()

	return r.pool.QueryRow(ctx, query,
		c.ID, c.FullName, c.Email, c.Phone, c.Description,
	).Scan(&c.CreatedAt)
}

// List returns contact requests newest first along with the total row count.
func (r *ContactRepo) List(ctx context.Context, limit, offset int) ([]*models.ContactRequest, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM contact_requests").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, full_name, email, phone, description, created_at
		FROM contact_requests ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	contacts := []*models.ContactRequest{}
	for rows.Next() {
		c := &models.ContactRequest{}
		if err := rows.Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.Description, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, c)
	}

	return contacts, total, rows.Err()
}
