package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/events"
)

type memLessonPlanRepo struct {
	plans      map[string]models.LessonPlan
	lastFilter models.LessonPlanFilter
}

func (m *memLessonPlanRepo) List(ctx context.Context, filter models.LessonPlanFilter) ([]models.LessonPlan, int, error) {
	m.lastFilter = filter
	var out []models.LessonPlan
	for _, p := range m.plans {
		if filter.TeacherID == "" || p.TeacherID == filter.TeacherID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *memLessonPlanRepo) FindByID(ctx context.Context, id string) (*models.LessonPlan, error) {
	if p, ok := m.plans[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memLessonPlanRepo) Create(ctx context.Context, plan *models.LessonPlan) error {
	plan.ID = "lp-new"
	m.plans[plan.ID] = *plan
	return nil
}

func (m *memLessonPlanRepo) Update(ctx context.Context, plan *models.LessonPlan) error {
	current := m.plans[plan.ID]
	if !current.Editable() {
		return repository.ErrStaleWrite
	}
	m.plans[plan.ID] = *plan
	return nil
}

func (m *memLessonPlanRepo) Transition(ctx context.Context, id, from, to string, reviewer, note *string) error {
	p, ok := m.plans[id]
	if !ok || p.Status != from {
		return repository.ErrStaleWrite
	}
	p.Status = to
	if note != nil {
		p.ReviewNote = note
	}
	if reviewer != nil {
		p.ReviewedBy = reviewer
	}
	m.plans[id] = p
	return nil
}

func (m *memLessonPlanRepo) Delete(ctx context.Context, id string) error {
	if m.plans[id].Status == models.LessonPlanApproved {
		return repository.ErrStaleWrite
	}
	delete(m.plans, id)
	return nil
}

func (m *memLessonPlanRepo) StatusCounts(ctx context.Context, filter models.LessonPlanFilter) ([]models.StatusCount, error) {
	m.lastFilter = filter
	counts := map[string]int{}
	for _, p := range m.plans {
		if filter.TeacherID == "" || p.TeacherID == filter.TeacherID {
			counts[p.Status]++
		}
	}
	var out []models.StatusCount
	for status, n := range counts {
		out = append(out, models.StatusCount{Status: status, Count: n})
	}
	return out, nil
}

var (
	teacherActor = models.Actor{UserID: "teacher-user", Role: models.RoleTeacher}
	adminActor   = models.Actor{UserID: "admin-user", Role: models.RoleAdmin}
)

func newLessonPlanFixture() (*LessonPlanService, *memLessonPlanRepo, *recordingBus) {
	repo := &memLessonPlanRepo{plans: map[string]models.LessonPlan{
		"lp-other": {ID: "lp-other", TeacherID: "someone-else", Status: models.LessonPlanDraft},
	}}
	subjects := staticSubjectLookup{mathSubjectID: {ID: mathSubjectID, ClassID: classSevenID}}
	teachers := fakeTeacherLookup{teacherOneID: {Teacher: models.Teacher{ID: teacherOneID, Active: true}}}
	byUser := fakeTeacherByUser{"teacher-user": {Teacher: models.Teacher{ID: teacherOneID}}}
	bus := &recordingBus{}
	svc := NewLessonPlanService(repo, subjects, teachers, byUser, &recordingAudit{}, bus, nil, nil)
	return svc, repo, bus
}

func fractionsPlan() LessonPlanRequest {
	return LessonPlanRequest{ClassID: classSevenID, SubjectID: mathSubjectID, Title: "Fractions", PlannedDate: "2025-03-12"}
}

func TestLessonPlanWorkflow(t *testing.T) {
	svc, _, bus := newLessonPlanFixture()
	ctx := context.Background()

	plan, err := svc.Create(ctx, teacherActor, fractionsPlan())
	require.NoError(t, err)
	assert.Equal(t, teacherOneID, plan.TeacherID)
	assert.Equal(t, models.LessonPlanDraft, plan.Status)

	submitted, err := svc.Submit(ctx, teacherActor, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LessonPlanSubmitted, submitted.Status)

	_, err = svc.Update(ctx, teacherActor, plan.ID, fractionsPlan())
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Review(ctx, adminActor, plan.ID, LessonPlanReviewRequest{Decision: "rejected"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	reviewed, err := svc.Review(ctx, adminActor, plan.ID, LessonPlanReviewRequest{Decision: "Rejected", Note: "add exercises"})
	require.NoError(t, err)
	assert.Equal(t, models.LessonPlanRejected, reviewed.Status)
	require.Len(t, bus.events, 1)
	assert.Equal(t, events.TopicLessonPlanReviewed, bus.events[0].topic)

	req := fractionsPlan()
	req.Activities = "worksheet"
	edited, err := svc.Update(ctx, teacherActor, plan.ID, req)
	require.NoError(t, err)
	assert.Equal(t, models.LessonPlanDraft, edited.Status)

	_, err = svc.Review(ctx, adminActor, plan.ID, LessonPlanReviewRequest{Decision: "approved"})
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestLessonPlanOwnership(t *testing.T) {
	svc, repo, _ := newLessonPlanFixture()
	ctx := context.Background()

	_, err := svc.Get(ctx, teacherActor, "lp-other")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, _, err = svc.List(ctx, teacherActor, models.LessonPlanFilter{TeacherID: "someone-else"})
	require.NoError(t, err)
	assert.Equal(t, teacherOneID, repo.lastFilter.TeacherID)

	_, err = svc.Get(ctx, adminActor, "lp-other")
	assert.NoError(t, err)

	_, _, err = svc.List(ctx, models.Actor{UserID: "s", Role: models.RoleStudent}, models.LessonPlanFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Create(ctx, adminActor, fractionsPlan())
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestLessonPlanApprovedCannotBeDeleted(t *testing.T) {
	svc, repo, _ := newLessonPlanFixture()
	repo.plans["lp-done"] = models.LessonPlan{ID: "lp-done", TeacherID: teacherOneID, Status: models.LessonPlanApproved}

	err := svc.Delete(context.Background(), teacherActor, "lp-done")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	repo.plans["lp-draft"] = models.LessonPlan{ID: "lp-draft", TeacherID: teacherOneID, Status: models.LessonPlanDraft}
	require.NoError(t, svc.Delete(context.Background(), teacherActor, "lp-draft"))
	assert.NotContains(t, repo.plans, "lp-draft")
}
