package database

import (
	"database/sql"
	"fmt"

	"github.com/postwatch/postwatch/internal/models"
)

// PostgresStatsRepository implements models.StatsRepository on Postgres.
type PostgresStatsRepository struct {
	db *sql.DB
}

func NewPostgresStatsRepository(db *sql.DB) *PostgresStatsRepository {
	return &PostgresStatsRepository{db: db}
}

// statColumns maps StatField values onto column names. Increment only
// interpolates names from this map, never caller input.
var statColumns = map[models.StatField]string{
	models.StatChecksPerformed:   "checks_performed",
	models.StatPostsFound:        "posts_found",
	models.StatNotificationsSent: "notifications_sent",
	models.StatErrors:            "errors",
}

func (r *PostgresStatsRepository) Increment(userID, platform, date string, field models.StatField, delta int64) error {
	column, ok := statColumns[field]
	if !ok {
		return fmt.Errorf("unknown stat field: %s", field)
	}

	query := fmt.Sprintf(`
		INSERT INTO daily_stats (user_id, platform, date, %[1]s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, platform, date)
		DO UPDATE SET %[1]s = daily_stats.%[1]s + EXCLUDED.%[1]s
	`, column)

	_, err := r.db.Exec(query, userID, platform, date, delta)
	return err
}

func (r *PostgresStatsRepository) Get(userID, platform, date string) (*models.DailyStat, error) {
	query := `
		SELECT user_id, platform, to_char(date, 'YYYY-MM-DD'), checks_performed, posts_found, notifications_sent, errors
		FROM daily_stats
		WHERE user_id = $1 AND platform = $2 AND date = $3
	`

	var stat models.DailyStat
	err := r.db.QueryRow(query, userID, platform, date).Scan(
		&stat.UserID,
		&stat.Platform,
		&stat.Date,
		&stat.ChecksPerformed,
		&stat.PostsFound,
		&stat.NotificationsSent,
		&stat.Errors,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily stat: %w", err)
	}
	return &stat, nil
}
