package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sims-api/internal/models"
)

const noticeColumns = `id, title, body, audience, class_id, pinned, published_at, expires_at, created_by, created_at, updated_at`

// NoticeRepository persists notices.
type NoticeRepository struct {
	db *sqlx.DB
}

// NewNoticeRepository constructs a NoticeRepository.
func NewNoticeRepository(db *sqlx.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// List returns notices. With Audiences set, class-scoped notices only match the given ClassIDs.
func (r *NoticeRepository) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	var cond conditions
	if len(filter.Audiences) > 0 {
		cond.add("audience = ANY($%d)", pq.Array(filter.Audiences))
		cond.add("(audience <> 'class' OR class_id = ANY($%d))", pq.Array(filter.ClassIDs))
	}
	if filter.ActiveAt != nil {
		cond.add("published_at <= $%[1]d AND (expires_at IS NULL OR expires_at > $%[1]d)", *filter.ActiveAt)
	}
	if filter.Search != "" {
		cond.add("(LOWER(title) LIKE $%[1]d OR LOWER(body) LIKE $%[1]d)", likePattern(filter.Search))
	}
	sorts := map[string]string{"published_at": "published_at", "title": "title", "created_at": "created_at"}
	query := "SELECT " + noticeColumns + " FROM notices" + cond.where() +
		" ORDER BY pinned DESC, " + orderTerm(filter.SortBy, filter.SortOrder, sorts, "published_at") + limitClause(filter.Page, filter.PageSize)

	var notices []models.Notice
	if err := r.db.SelectContext(ctx, &notices, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list notices: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notices"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count notices: %w", err)
	}
	return notices, total, nil
}

// FindByID returns a notice.
func (r *NoticeRepository) FindByID(ctx context.Context, id string) (*models.Notice, error) {
	var notice models.Notice
	if err := r.db.GetContext(ctx, &notice, "SELECT "+noticeColumns+" FROM notices WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notice: %w", err)
	}
	return &notice, nil
}

// Create inserts a notice.
func (r *NoticeRepository) Create(ctx context.Context, notice *models.Notice) error {
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	notice.CreatedAt = now
	notice.UpdatedAt = now
	const query = `INSERT INTO notices (` + noticeColumns + `)
VALUES (:id, :title, :body, :audience, :class_id, :pinned, :published_at, :expires_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notice); err != nil {
		return fmt.Errorf("create notice: %w", err)
	}
	return nil
}

// Update modifies a notice.
func (r *NoticeRepository) Update(ctx context.Context, notice *models.Notice) error {
	notice.UpdatedAt = time.Now().UTC()
	const query = `UPDATE notices SET title = :title, body = :body, audience = :audience, class_id = :class_id, pinned = :pinned,
published_at = :published_at, expires_at = :expires_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, notice); err != nil {
		return fmt.Errorf("update notice: %w", err)
	}
	return nil
}

// Delete removes a notice.
func (r *NoticeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notices WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete notice: %w", err)
	}
	return nil
}
