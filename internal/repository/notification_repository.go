package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/pkg/database"
)

const notificationColumns = `id, user_id, type, title, body, data, read_at, created_at`

// NotificationRepository persists in-app notifications and resolves their recipients.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// List returns the inbox of a user, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	var cond conditions
	cond.add("user_id = $%d", filter.UserID)
	if filter.UnreadOnly {
		cond.raw("read_at IS NULL")
	}
	query := "SELECT " + notificationColumns + " FROM notifications" + cond.where() + " ORDER BY created_at DESC" + limitClause(filter.Page, filter.PageSize)

	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}

// UnreadCount counts unread notifications of a user.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// CreateBatch inserts notifications in one transaction.
func (r *NotificationRepository) CreateBatch(ctx context.Context, items []models.Notification) error {
	if len(items) == 0 {
		return nil
	}
	return database.WithTx(ctx, r.db, "create notifications", func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		const query = `INSERT INTO notifications (` + notificationColumns + `)
VALUES (:id, :user_id, :type, :title, :body, :data, :read_at, :created_at)`
		for i := range items {
			if items[i].ID == "" {
				items[i].ID = uuid.NewString()
			}
			items[i].CreatedAt = now
			if _, err := tx.NamedExecContext(ctx, query, &items[i]); err != nil {
				return fmt.Errorf("create notification: %w", err)
			}
		}
		return nil
	})
}

// MarkRead marks one notification of the user as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read_at = COALESCE(read_at, $3) WHERE id = $1 AND user_id = $2`, id, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return expectOneRow(res, "mark notification read")
}

// MarkAllRead marks every unread notification of the user as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read_at = $2 WHERE user_id = $1 AND read_at IS NULL`, userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications read rows: %w", err)
	}
	return affected, nil
}

// UsersByIDs resolves active users into recipients.
func (r *NotificationRepository) UsersByIDs(ctx context.Context, userIDs []string) ([]models.Recipient, error) {
	var recipients []models.Recipient
	const query = `SELECT id AS user_id, full_name, email, phone FROM users WHERE id = ANY($1) AND active`
	if err := r.db.SelectContext(ctx, &recipients, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	return recipients, nil
}

// StudentAndGuardianUsers resolves the login accounts of students and their guardians.
func (r *NotificationRepository) StudentAndGuardianUsers(ctx context.Context, studentIDs []string) ([]models.Recipient, error) {
	const query = `SELECT DISTINCT u.id AS user_id, u.full_name, u.email, u.phone FROM users u
WHERE u.active AND (
    u.id IN (SELECT s.user_id FROM students s WHERE s.id = ANY($1) AND s.user_id IS NOT NULL)
 OR u.id IN (SELECT g.user_id FROM guardians g JOIN guardian_students gs ON gs.guardian_id = g.id
             WHERE gs.student_id = ANY($1) AND g.user_id IS NOT NULL))`
	var recipients []models.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list student recipients: %w", err)
	}
	return recipients, nil
}

// ClassUsers resolves the accounts of the students of a class and their guardians.
func (r *NotificationRepository) ClassUsers(ctx context.Context, classID string) ([]models.Recipient, error) {
	var studentIDs []string
	if err := r.db.SelectContext(ctx, &studentIDs, `SELECT id FROM students WHERE class_id = $1 AND active`, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	if len(studentIDs) == 0 {
		return nil, nil
	}
	return r.StudentAndGuardianUsers(ctx, studentIDs)
}

// RoleUsers resolves the active accounts holding any of the roles, either as legacy role or assignment.
func (r *NotificationRepository) RoleUsers(ctx context.Context, roles []string) ([]models.Recipient, error) {
	const query = `SELECT DISTINCT u.id AS user_id, u.full_name, u.email, u.phone FROM users u
LEFT JOIN user_roles ur ON ur.user_id = u.id LEFT JOIN roles ro ON ro.id = ur.role_id
WHERE u.active AND (u.role = ANY($1) OR ro.name = ANY($1))`
	var recipients []models.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query, pq.Array(roles)); err != nil {
		return nil, fmt.Errorf("list role recipients: %w", err)
	}
	return recipients, nil
}
