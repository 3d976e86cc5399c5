package brand

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrContextNotFound = errors.New("brand context not found")

// Context is a reusable brand profile merged into prompts before they
// reach the router.
type Context struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Industry       string    `json:"industry"`
	Tone           string    `json:"tone"`
	TargetAudience string    `json:"target_audience"`
	Personality    string    `json:"brand_personality"`
	Keywords       []string  `json:"keywords"`
	CreatedAt      time.Time `json:"created_at"`
}

type Store interface {
	Create(ctx context.Context, bc *Context) error
	Get(ctx context.Context, id string) (*Context, error)
	Update(ctx context.Context, bc *Context) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*Context, error)
}

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) Store {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, bc *Context) error {
	if bc.ID == "" {
		bc.ID = uuid.New().String()
	}
	query := `
		INSERT INTO brand_contexts (id, user_id, industry, tone, target_audience, brand_personality, keywords)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := s.db.QueryRow(ctx, query,
		bc.ID, bc.UserID, bc.Industry, bc.Tone, bc.TargetAudience, bc.Personality, bc.Keywords,
	).Scan(&bc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create brand context: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Context, error) {
	query := `
		SELECT id, user_id, industry, tone, target_audience, brand_personality, keywords, created_at
		FROM brand_contexts
		WHERE id = $1
	`
	var bc Context
	err := s.db.QueryRow(ctx, query, id).Scan(
		&bc.ID, &bc.UserID, &bc.Industry, &bc.Tone, &bc.TargetAudience,
		&bc.Personality, &bc.Keywords, &bc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContextNotFound
		}
		return nil, fmt.Errorf("failed to get brand context: %w", err)
	}
	return &bc, nil
}

func (s *PostgresStore) Update(ctx context.Context, bc *Context) error {
	query := `
		UPDATE brand_contexts
		SET industry = $2, tone = $3, target_audience = $4, brand_personality = $5, keywords = $6
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query,
		bc.ID, bc.Industry, bc.Tone, bc.TargetAudience, bc.Personality, bc.Keywords,
	)
	if err != nil {
		return fmt.Errorf("failed to update brand context: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContextNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM brand_contexts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete brand context: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContextNotFound
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*Context, error) {
	query := `
		SELECT id, user_id, industry, tone, target_audience, brand_personality, keywords, created_at
		FROM brand_contexts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list brand contexts: %w", err)
	}
	defer rows.Close()

	var contexts []*Context
	for rows.Next() {
		var bc Context
		err := rows.Scan(
			&bc.ID, &bc.UserID, &bc.Industry, &bc.Tone, &bc.TargetAudience,
			&bc.Personality, &bc.Keywords, &bc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan brand context: %w", err)
		}
		contexts = append(contexts, &bc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating brand contexts: %w", err)
	}
	return contexts, nil
}
