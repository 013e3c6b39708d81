package fusion

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists assessments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, assessment *Assessment) error {
	factorsJSON, err := json.Marshal(assessment.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessments (id, user_id, tier, label, score, factors, flags, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		assessment.ID,
		assessment.UserID,
		string(assessment.Tier),
		string(assessment.Label),
		assessment.Score,
		factorsJSON,
		pq.Array(assessment.Flags),
		assessment.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, tier, label, score, factors, flags, evaluated_at
		FROM assessments
		WHERE user_id = $1
		ORDER BY evaluated_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Assessment
	for rows.Next() {
		var a Assessment
		var factorsJSON []byte
		var flags pq.StringArray
		var evaluatedAt time.Time

		if err := rows.Scan(&a.ID, &a.UserID, &a.Tier, &a.Label, &a.Score, &factorsJSON, &flags, &evaluatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		a.EvaluatedAt = evaluatedAt
		a.Flags = []string(flags)
		a.Factors = make(map[string]float64)
		_ = json.Unmarshal(factorsJSON, &a.Factors)
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assessments: %w", err)
	}
	return result, nil
}
