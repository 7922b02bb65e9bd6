package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sims-api/internal/models"
)

const lessonPlanColumns = `id, teacher_id, class_id, subject_id, title, topic, objectives, activities, resources, planned_date, status,
review_note, reviewed_by, reviewed_at, created_at, updated_at`

// LessonPlanRepository persists lesson plans.
type LessonPlanRepository struct {
	db *sqlx.DB
}

// NewLessonPlanRepository constructs a LessonPlanRepository.
func NewLessonPlanRepository(db *sqlx.DB) *LessonPlanRepository {
	return &LessonPlanRepository{db: db}
}

func lessonPlanConditions(filter models.LessonPlanFilter) conditions {
	var cond conditions
	if filter.TeacherID != "" {
		cond.add("teacher_id = $%d", filter.TeacherID)
	}
	if filter.ClassID != "" {
		cond.add("class_id = $%d", filter.ClassID)
	}
	if filter.SubjectID != "" {
		cond.add("subject_id = $%d", filter.SubjectID)
	}
	if filter.Status != "" {
		cond.add("status = $%d", filter.Status)
	}
	return cond
}

// List returns lesson plans with filters and total count.
func (r *LessonPlanRepository) List(ctx context.Context, filter models.LessonPlanFilter) ([]models.LessonPlan, int, error) {
	cond := lessonPlanConditions(filter)
	sorts := map[string]string{"planned_date": "planned_date", "created_at": "created_at", "title": "title", "status": "status"}
	query := "SELECT " + lessonPlanColumns + " FROM lesson_plans" + cond.where() +
		pageClause(filter.SortBy, filter.SortOrder, sorts, "planned_date", filter.Page, filter.PageSize)

	var plans []models.LessonPlan
	if err := r.db.SelectContext(ctx, &plans, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list lesson plans: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM lesson_plans"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count lesson plans: %w", err)
	}
	return plans, total, nil
}

// FindByID returns a lesson plan.
func (r *LessonPlanRepository) FindByID(ctx context.Context, id string) (*models.LessonPlan, error) {
	var plan models.LessonPlan
	if err := r.db.GetContext(ctx, &plan, "SELECT "+lessonPlanColumns+" FROM lesson_plans WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lesson plan: %w", err)
	}
	return &plan, nil
}

// Create inserts a lesson plan.
func (r *LessonPlanRepository) Create(ctx context.Context, plan *models.LessonPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	const query = `INSERT INTO lesson_plans (` + lessonPlanColumns + `)
VALUES (:id, :teacher_id, :class_id, :subject_id, :title, :topic, :objectives, :activities, :resources, :planned_date, :status,
:review_note, :reviewed_by, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("create lesson plan: %w", err)
	}
	return nil
}

// Update modifies the content of a plan still in draft or rejected state.
func (r *LessonPlanRepository) Update(ctx context.Context, plan *models.LessonPlan) error {
	plan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lesson_plans SET class_id = :class_id, subject_id = :subject_id, title = :title, topic = :topic,
objectives = :objectives, activities = :activities, resources = :resources, planned_date = :planned_date, status = :status,
updated_at = :updated_at WHERE id = :id AND status IN ('draft', 'rejected')`
	res, err := r.db.NamedExecContext(ctx, query, plan)
	if err != nil {
		return fmt.Errorf("update lesson plan: %w", err)
	}
	return expectOneRow(res, "update lesson plan")
}

// Transition moves a plan from one status to another, recording the reviewer for review decisions.
func (r *LessonPlanRepository) Transition(ctx context.Context, id, from, to string, reviewer, note *string) error {
	now := time.Now().UTC()
	var reviewedAt *time.Time
	if reviewer != nil {
		reviewedAt = &now
	}
	const query = `UPDATE lesson_plans SET status = $3, review_note = COALESCE($4, review_note), reviewed_by = COALESCE($5, reviewed_by),
reviewed_at = COALESCE($6, reviewed_at), updated_at = $7 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, note, reviewer, reviewedAt, now)
	if err != nil {
		return fmt.Errorf("transition lesson plan: %w", err)
	}
	return expectOneRow(res, "transition lesson plan")
}

// Delete removes a plan that has not been approved.
func (r *LessonPlanRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lesson_plans WHERE id = $1 AND status <> 'approved'`, id)
	if err != nil {
		return fmt.Errorf("delete lesson plan: %w", err)
	}
	return expectOneRow(res, "delete lesson plan")
}

// StatusCounts groups lesson plans by status.
func (r *LessonPlanRepository) StatusCounts(ctx context.Context, filter models.LessonPlanFilter) ([]models.StatusCount, error) {
	cond := lessonPlanConditions(filter)
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, "SELECT status, COUNT(*) AS count FROM lesson_plans"+cond.where()+" GROUP BY status ORDER BY status", cond.args...); err != nil {
		return nil, fmt.Errorf("count lesson plans by status: %w", err)
	}
	return counts, nil
}
