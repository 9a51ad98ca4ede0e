package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/postwatch/postwatch/internal/models"
)

// PostgresAccountRepository implements models.AccountRepository on Postgres.
type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

const accountColumns = `
	id, user_id, platform, target_account_id, target_username, status,
	check_interval_minutes, last_check_at, last_post_id, last_post_content,
	consecutive_errors, last_error, created_at, updated_at
`

func (r *PostgresAccountRepository) Store(account *models.MonitoredAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	query := `
		INSERT INTO monitored_accounts
		(id, user_id, platform, target_account_id, target_username, status, check_interval_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, platform, target_account_id)
		DO UPDATE SET
			target_username = EXCLUDED.target_username,
			status = EXCLUDED.status,
			check_interval_minutes = EXCLUDED.check_interval_minutes,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(query,
		account.ID,
		account.UserID,
		account.Platform,
		account.TargetAccountID,
		account.TargetUsername,
		account.Status,
		account.CheckIntervalMinutes,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
}

func (r *PostgresAccountRepository) GetByID(id string) (*models.MonitoredAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM monitored_accounts WHERE id = $1`

	account, err := scanAccount(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return account, err
}

func (r *PostgresAccountRepository) ListDue(now time.Time) ([]*models.MonitoredAccount, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM monitored_accounts
		WHERE status = $1
		  AND (last_check_at IS NULL
		       OR $2 - last_check_at >= make_interval(mins => check_interval_minutes))
		ORDER BY last_check_at NULLS FIRST
	`

	rows, err := r.db.Query(query, models.AccountStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("list due accounts: %w", err)
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func (r *PostgresAccountRepository) ListByUser(userID string) ([]*models.MonitoredAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM monitored_accounts WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts by user: %w", err)
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func (r *PostgresAccountRepository) UpdateAfterCheck(id string, checkedAt time.Time, lastPostID, lastPostContent string) error {
	query := `
		UPDATE monitored_accounts SET
			last_check_at = $2,
			last_post_id = COALESCE(NULLIF($3, ''), last_post_id),
			last_post_content = COALESCE(NULLIF($4, ''), last_post_content),
			consecutive_errors = 0,
			last_error = '',
			updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.Exec(query, id, checkedAt, lastPostID, lastPostContent)
	return err
}

func (r *PostgresAccountRepository) RecordError(id, message string) (int, error) {
	query := `
		UPDATE monitored_accounts SET
			consecutive_errors = consecutive_errors + 1,
			last_error = $2,
			last_check_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		RETURNING consecutive_errors
	`

	var count int
	if err := r.db.QueryRow(query, id, message).Scan(&count); err != nil {
		return 0, fmt.Errorf("record account error: %w", err)
	}
	return count, nil
}

func (r *PostgresAccountRepository) SetStatus(id string, status models.AccountStatus) error {
	_, err := r.db.Exec(
		`UPDATE monitored_accounts SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	return err
}

func (r *PostgresAccountRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM monitored_accounts WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.MonitoredAccount, error) {
	var account models.MonitoredAccount
	var lastCheckAt sql.NullTime
	var targetUsername, lastPostID, lastPostContent, lastError sql.NullString

	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Platform,
		&account.TargetAccountID,
		&targetUsername,
		&account.Status,
		&account.CheckIntervalMinutes,
		&lastCheckAt,
		&lastPostID,
		&lastPostContent,
		&account.ConsecutiveErrors,
		&lastError,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.TargetUsername = targetUsername.String
	account.LastPostID = lastPostID.String
	account.LastPostContent = lastPostContent.String
	account.LastError = lastError.String
	if lastCheckAt.Valid {
		account.LastCheckAt = &lastCheckAt.Time
	}

	return &account, nil
}

func collectAccounts(rows *sql.Rows) ([]*models.MonitoredAccount, error) {
	var accounts []*models.MonitoredAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}
