package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/postwatch/postwatch/internal/models"
)

// PostgresPostRepository implements models.PostRepository on Postgres.
type PostgresPostRepository struct {
	db *sql.DB
}

func NewPostgresPostRepository(db *sql.DB) *PostgresPostRepository {
	return &PostgresPostRepository{db: db}
}

const postColumns = `
	id, account_id, platform, platform_post_id, url, content_type, content,
	media_urls, published_at, raw_metadata, notified, notify_error, created_at
`

// InsertIfNew relies on the unique (platform, platform_post_id) index: a
// conflicting insert leaves the existing row untouched and reports false.
func (r *PostgresPostRepository) InsertIfNew(post *models.DiscoveredPost) (bool, error) {
	if post.ID == "" {
		post.ID = uuid.New().String()
	}

	metadataJSON, err := json.Marshal(post.RawMetadata)
	if err != nil {
		return false, fmt.Errorf("marshal post metadata: %w", err)
	}

	query := `
		INSERT INTO discovered_posts
		(id, account_id, platform, platform_post_id, url, content_type, content,
		 media_urls, published_at, raw_metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (platform, platform_post_id) DO NOTHING
		RETURNING created_at
	`

	err = r.db.QueryRow(query,
		post.ID,
		post.AccountID,
		post.Platform,
		post.PlatformPostID,
		post.URL,
		post.ContentType,
		post.Content,
		pq.Array(post.MediaURLs),
		post.PublishedAt,
		metadataJSON,
	).Scan(&post.CreatedAt)

	if err == sql.ErrNoRows {
		// Conflict: the post was already discovered.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert post: %w", err)
	}
	return true, nil
}

func (r *PostgresPostRepository) GetByPlatformID(platform, platformPostID string) (*models.DiscoveredPost, error) {
	query := `SELECT ` + postColumns + ` FROM discovered_posts WHERE platform = $1 AND platform_post_id = $2`

	post, err := scanPost(r.db.QueryRow(query, platform, platformPostID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return post, err
}

func (r *PostgresPostRepository) ListByAccount(accountID string, limit int) ([]*models.DiscoveredPost, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + postColumns + `
		FROM discovered_posts
		WHERE account_id = $1
		ORDER BY published_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts by account: %w", err)
	}
	defer rows.Close()

	var posts []*models.DiscoveredPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *PostgresPostRepository) MarkNotified(id string, errMessage string) error {
	_, err := r.db.Exec(
		`UPDATE discovered_posts SET notified = TRUE, notify_error = $2 WHERE id = $1`,
		id, errMessage,
	)
	return err
}

func scanPost(row rowScanner) (*models.DiscoveredPost, error) {
	var post models.DiscoveredPost
	var url, content, notifyError sql.NullString
	var mediaURLs pq.StringArray
	var metadataJSON []byte

	err := row.Scan(
		&post.ID,
		&post.AccountID,
		&post.Platform,
		&post.PlatformPostID,
		&url,
		&post.ContentType,
		&content,
		&mediaURLs,
		&post.PublishedAt,
		&metadataJSON,
		&post.Notified,
		&notifyError,
		&post.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	post.URL = url.String
	post.Content = content.String
	post.NotifyError = notifyError.String
	post.MediaURLs = mediaURLs

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &post.RawMetadata); err != nil {
			return nil, fmt.Errorf("unmarshal post metadata: %w", err)
		}
	}

	return &post, nil
}
