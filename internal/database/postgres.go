// internal/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"mangrove/internal/models"
	"mangrove/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DBAdapter defines the common interface for database operations.
// Both MongoDB and PostgreSQL implement it; DB_TYPE selects which one
// at startup.
type DBAdapter interface {
	// Connection
	Close(ctx context.Context) error

	// User methods
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// Post methods
	SavePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	GetRecentPosts(ctx context.Context, limit, offset int) ([]*models.Post, error)
	IncrementPostCommentCount(ctx context.Context, postID uuid.UUID, delta int) error

	// Comment methods
	SaveComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	UpdateCommentContent(ctx context.Context, id uuid.UUID, content string) error
	GetPostComments(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error)
	DeleteCommentTree(ctx context.Context, id uuid.UUID) (int, error)

	// Notification methods
	SaveNotification(ctx context.Context, n *models.Notification) error
	GetNotifications(ctx context.Context, userID uuid.UUID, filter models.NotificationFilter, limit, offset int) (*models.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int, error)
}

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	DB *sqlx.DB
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL!")

	return &PostgresDB{DB: db}, nil
}

// Close closes the database connection
func (p *PostgresDB) Close(ctx context.Context) error {
	log.Println("Closing PostgreSQL connection...")
	return p.DB.Close()
}

// InitializeTables creates all necessary tables if they don't exist
func (p *PostgresDB) InitializeTables(ctx context.Context) error {
	// Users table
	_, err := p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username VARCHAR(50) NOT NULL,
			email VARCHAR(100) UNIQUE NOT NULL,
			password_hash VARCHAR(100) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create users table: %v", err)
	}

	// Mention resolution is case-insensitive, so uniqueness is on the
	// folded username.
	_, err = p.DB.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_idx ON users (LOWER(username))
	`)
	if err != nil {
		return fmt.Errorf("failed to create username index: %v", err)
	}

	// Posts table
	_, err = p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS posts (
			id UUID PRIMARY KEY,
			title VARCHAR(300) NOT NULL,
			content TEXT,
			author_id UUID REFERENCES users(id),
			author_username VARCHAR(50) NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			comment_count INTEGER DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create posts table: %v", err)
	}

	// Comments table
	_, err = p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS comments (
			id UUID PRIMARY KEY,
			content TEXT NOT NULL,
			author_id UUID REFERENCES users(id),
			author_username VARCHAR(50) NOT NULL DEFAULT '',
			post_id UUID REFERENCES posts(id),
			parent_id UUID REFERENCES comments(id),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create comments table: %v", err)
	}

	_, err = p.DB.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS comments_post_created_idx ON comments (post_id, created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create comments index: %v", err)
	}

	// Notifications table
	_, err = p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			user_id UUID REFERENCES users(id),
			type VARCHAR(20) NOT NULL,
			title VARCHAR(200) NOT NULL,
			message TEXT NOT NULL,
			link VARCHAR(500),
			is_read BOOLEAN DEFAULT FALSE NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			data JSONB
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create notifications table: %v", err)
	}

	_, err = p.DB.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS notifications_user_created_idx ON notifications (user_id, created_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create notifications index: %v", err)
	}

	return nil
}

// SaveUser inserts a new user into the database.
func (p *PostgresDB) SaveUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.UpdatedAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			updated_at = EXCLUDED.updated_at
	`
	_, err := p.DB.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.HashedPassword,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return utils.NewAppError(utils.ErrDuplicate, fmt.Sprintf("user already exists: %v", pqErr.Constraint), err)
		}
		return utils.NewAppError(utils.ErrDatabase, "failed to save user", err)
	}
	return nil
}

// GetUser fetches a user by their ID.
func (p *PostgresDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE id = $1`
	var user models.User
	err := p.DB.GetContext(ctx, &user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrUserNotFound, "user not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user by id", err)
	}
	return &user, nil
}

// GetUserByEmail fetches a user by their email address.
func (p *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE email = $1`
	var user models.User
	err := p.DB.GetContext(ctx, &user, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrUserNotFound, "user not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user by email", err)
	}
	return &user, nil
}

// GetUserByUsername fetches a user by username, case-insensitively.
func (p *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE LOWER(username) = LOWER($1)`
	var user models.User
	err := p.DB.GetContext(ctx, &user, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrUserNotFound, "user not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user by username", err)
	}
	return &user, nil
}

// SavePost inserts or updates a post.
func (p *PostgresDB) SavePost(ctx context.Context, post *models.Post) error {
	now := time.Now()
	post.UpdatedAt = now
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}

	query := `
		INSERT INTO posts (id, title, content, author_id, author_username, created_at, updated_at, comment_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at
	`
	_, err := p.DB.ExecContext(ctx, query,
		post.ID,
		post.Title,
		post.Content,
		post.AuthorID,
		post.AuthorUsername,
		post.CreatedAt,
		post.UpdatedAt,
		post.CommentCount,
	)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to save post", err)
	}
	return nil
}

// GetPost fetches one post by id.
func (p *PostgresDB) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	query := `SELECT id, title, content, author_id, author_username, created_at, updated_at, comment_count FROM posts WHERE id = $1`
	var post models.Post
	err := p.DB.GetContext(ctx, &post, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrNotFound, "post not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query post", err)
	}
	return &post, nil
}

// GetRecentPosts lists posts newest first.
func (p *PostgresDB) GetRecentPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	query := `
		SELECT id, title, content, author_id, author_username, created_at, updated_at, comment_count
		FROM posts ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`
	var posts []*models.Post
	if err := p.DB.SelectContext(ctx, &posts, query, limit, offset); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query recent posts", err)
	}
	return posts, nil
}

// IncrementPostCommentCount adjusts the comment count by delta.
func (p *PostgresDB) IncrementPostCommentCount(ctx context.Context, postID uuid.UUID, delta int) error {
	query := `UPDATE posts SET comment_count = comment_count + $1, updated_at = NOW() WHERE id = $2`
	result, err := p.DB.ExecContext(ctx, query, delta, postID)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to update post comment count", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to get rows affected", err)
	}
	if rows == 0 {
		return utils.NewAppError(utils.ErrNotFound, "post not found", nil)
	}
	return nil
}

// SaveComment inserts or updates a comment row.
func (p *PostgresDB) SaveComment(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (id, content, author_id, author_username, post_id, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at
	`
	_, err := p.DB.ExecContext(ctx, query,
		comment.ID,
		comment.Content,
		comment.AuthorID,
		comment.AuthorUsername,
		comment.PostID,
		comment.ParentID,
		comment.CreatedAt,
		comment.UpdatedAt,
	)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to save comment", err)
	}
	return nil
}

// GetComment fetches one comment by id.
func (p *PostgresDB) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	query := `
		SELECT id, content, author_id, author_username, post_id, parent_id, created_at, updated_at
		FROM comments WHERE id = $1
	`
	var comment models.Comment
	err := p.DB.GetContext(ctx, &comment, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrNotFound, "comment not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query comment", err)
	}
	comment.Children = make([]*models.Comment, 0)
	return &comment, nil
}

// UpdateCommentContent replaces a comment's content.
func (p *PostgresDB) UpdateCommentContent(ctx context.Context, id uuid.UUID, content string) error {
	query := `UPDATE comments SET content = $1, updated_at = NOW() WHERE id = $2`
	result, err := p.DB.ExecContext(ctx, query, content, id)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to update comment", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to get rows affected", err)
	}
	if rows == 0 {
		return utils.NewAppError(utils.ErrNotFound, "comment not found", nil)
	}
	return nil
}

// GetPostComments returns all comments for a post as flat rows in
// creation order.
func (p *PostgresDB) GetPostComments(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	query := `
		SELECT id, content, author_id, author_username, post_id, parent_id, created_at, updated_at
		FROM comments WHERE post_id = $1 ORDER BY created_at ASC
	`
	var comments []*models.Comment
	if err := p.DB.SelectContext(ctx, &comments, query, postID); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query post comments", err)
	}
	for _, c := range comments {
		c.Children = make([]*models.Comment, 0)
	}
	return comments, nil
}

// DeleteCommentTree deletes a comment and all its descendants in one
// recursive statement, returning the number of rows removed.
func (p *PostgresDB) DeleteCommentTree(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM comments WHERE id = $1
			UNION ALL
			SELECT c.id FROM comments c
			INNER JOIN subtree s ON c.parent_id = s.id
		)
		DELETE FROM comments WHERE id IN (SELECT id FROM subtree)
	`
	result, err := p.DB.ExecContext(ctx, query, id)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrDatabase, "failed to delete comment tree", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, utils.NewAppError(utils.ErrDatabase, "failed to get rows affected", err)
	}
	if rows == 0 {
		return 0, utils.NewAppError(utils.ErrNotFound, "comment not found", nil)
	}
	return int(rows), nil
}

// notificationRow is the scan target for notification queries; Data
// round-trips through JSONB.
type notificationRow struct {
	ID        uuid.UUID      `db:"id"`
	UserID    uuid.UUID      `db:"user_id"`
	Type      string         `db:"type"`
	Title     string         `db:"title"`
	Message   string         `db:"message"`
	Link      sql.NullString `db:"link"`
	IsRead    bool           `db:"is_read"`
	CreatedAt time.Time      `db:"created_at"`
	Data      []byte         `db:"data"`
}

func (r *notificationRow) toModel() (*models.Notification, error) {
	n := &models.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      models.NotificationType(r.Type),
		Title:     r.Title,
		Message:   r.Message,
		Link:      r.Link.String,
		IsRead:    r.IsRead,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &n.Data); err != nil {
			return nil, utils.NewAppError(utils.ErrDatabase, "failed to decode notification data", err)
		}
	}
	return n, nil
}

// SaveNotification inserts one notification row.
func (p *PostgresDB) SaveNotification(ctx context.Context, n *models.Notification) error {
	var data []byte
	if len(n.Data) > 0 {
		encoded, err := json.Marshal(n.Data)
		if err != nil {
			return utils.NewAppError(utils.ErrDatabase, "failed to encode notification data", err)
		}
		data = encoded
	}

	query := `
		INSERT INTO notifications (id, user_id, type, title, message, link, is_read, created_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := p.DB.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		string(n.Type),
		n.Title,
		n.Message,
		n.Link,
		n.IsRead,
		n.CreatedAt,
		data,
	)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to save notification", err)
	}
	return nil
}

// GetNotifications lists one user's notifications newest first.
func (p *PostgresDB) GetNotifications(ctx context.Context, userID uuid.UUID, filter models.NotificationFilter, limit, offset int) (*models.NotificationPage, error) {
	where := `WHERE user_id = $1`
	args := []interface{}{userID}
	if filter.UnreadOnly {
		where += ` AND is_read = FALSE`
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where += fmt.Sprintf(` AND type = $%d`, len(args))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM notifications ` + where
	if err := p.DB.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to count notifications", err)
	}

	listQuery := `
		SELECT id, user_id, type, title, message, link, is_read, created_at, data
		FROM notifications ` + where + ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		listQuery += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		listQuery += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	var rows []notificationRow
	if err := p.DB.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query notifications", err)
	}

	items := make([]*models.Notification, 0, len(rows))
	for i := range rows {
		n, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return &models.NotificationPage{Items: items, Total: total}, nil
}

// MarkNotificationRead flips one notification to read.
func (p *PostgresDB) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	result, err := p.DB.ExecContext(ctx, query, notificationID, userID)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to mark notification read", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to get rows affected", err)
	}
	if rows == 0 {
		return utils.NewAppError(utils.ErrNotFound, "notification not found", nil)
	}
	return nil
}

// MarkAllNotificationsRead flips every unread notification for a user
// and returns the number of rows updated.
func (p *PostgresDB) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`
	result, err := p.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrDatabase, "failed to mark all notifications read", err)
	}
	updated, _ := result.RowsAffected()
	return int(updated), nil
}
