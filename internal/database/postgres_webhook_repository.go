package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/postwatch/postwatch/internal/models"
)

// PostgresWebhookRepository implements models.WebhookRepository on Postgres.
type PostgresWebhookRepository struct {
	db *sql.DB
}

func NewPostgresWebhookRepository(db *sql.DB) *PostgresWebhookRepository {
	return &PostgresWebhookRepository{db: db}
}

const webhookColumns = `
	id, user_id, provider, url, secret, headers, template, active,
	success_count, failure_count, last_success_at, last_failure_at,
	created_at, updated_at
`

func (r *PostgresWebhookRepository) Store(dest *models.WebhookDestination) error {
	if dest.ID == "" {
		dest.ID = uuid.New().String()
	}

	headersJSON, err := json.Marshal(dest.Headers)
	if err != nil {
		return fmt.Errorf("marshal webhook headers: %w", err)
	}

	query := `
		INSERT INTO webhook_destinations
		(id, user_id, provider, url, secret, headers, template, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id)
		DO UPDATE SET
			provider = EXCLUDED.provider,
			url = EXCLUDED.url,
			secret = EXCLUDED.secret,
			headers = EXCLUDED.headers,
			template = EXCLUDED.template,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	return r.db.QueryRow(query,
		dest.ID,
		dest.UserID,
		dest.Provider,
		dest.URL,
		dest.Secret,
		headersJSON,
		dest.Template,
		dest.Active,
	).Scan(&dest.CreatedAt, &dest.UpdatedAt)
}

func (r *PostgresWebhookRepository) GetByID(id string) (*models.WebhookDestination, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_destinations WHERE id = $1`

	dest, err := scanWebhook(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return dest, err
}

func (r *PostgresWebhookRepository) ListActive(userID string) ([]*models.WebhookDestination, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_destinations WHERE user_id = $1 AND active ORDER BY created_at`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("list active webhooks: %w", err)
	}
	defer rows.Close()

	var dests []*models.WebhookDestination
	for rows.Next() {
		dest, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		dests = append(dests, dest)
	}
	return dests, rows.Err()
}

func (r *PostgresWebhookRepository) RecordOutcome(id string, success bool, errMessage string) error {
	var query string
	if success {
		query = `
			UPDATE webhook_destinations SET
				success_count = success_count + 1,
				last_success_at = NOW(),
				updated_at = NOW()
			WHERE id = $1
		`
		_, err := r.db.Exec(query, id)
		return err
	}

	query = `
		UPDATE webhook_destinations SET
			failure_count = failure_count + 1,
			last_failure_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(query, id)
	return err
}

func (r *PostgresWebhookRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM webhook_destinations WHERE id = $1`, id)
	return err
}

func scanWebhook(row rowScanner) (*models.WebhookDestination, error) {
	var dest models.WebhookDestination
	var secret, template sql.NullString
	var headersJSON []byte
	var lastSuccessAt, lastFailureAt sql.NullTime

	err := row.Scan(
		&dest.ID,
		&dest.UserID,
		&dest.Provider,
		&dest.URL,
		&secret,
		&headersJSON,
		&template,
		&dest.Active,
		&dest.SuccessCount,
		&dest.FailureCount,
		&lastSuccessAt,
		&lastFailureAt,
		&dest.CreatedAt,
		&dest.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	dest.Secret = secret.String
	dest.Template = template.String
	if lastSuccessAt.Valid {
		dest.LastSuccessAt = &lastSuccessAt.Time
	}
	if lastFailureAt.Valid {
		dest.LastFailureAt = &lastFailureAt.Time
	}

	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &dest.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal webhook headers: %w", err)
		}
	}

	return &dest, nil
}
