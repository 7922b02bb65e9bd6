package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/events"
)

type memNoticeRepo struct {
	notices    map[string]models.Notice
	lastFilter models.NoticeFilter
	seq        int
}

func (m *memNoticeRepo) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	m.lastFilter = filter
	var out []models.Notice
	for _, n := range m.notices {
		out = append(out, n)
	}
	return out, len(out), nil
}

func (m *memNoticeRepo) FindByID(ctx context.Context, id string) (*models.Notice, error) {
	if n, ok := m.notices[id]; ok {
		return &n, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memNoticeRepo) Create(ctx context.Context, notice *models.Notice) error {
	m.seq++
	notice.ID = "n" + string(rune('0'+m.seq))
	m.notices[notice.ID] = *notice
	return nil
}

func (m *memNoticeRepo) Update(ctx context.Context, notice *models.Notice) error {
	m.notices[notice.ID] = *notice
	return nil
}

func (m *memNoticeRepo) Delete(ctx context.Context, id string) error {
	delete(m.notices, id)
	return nil
}

var noticeNow = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

func newNoticeFixture() (*NoticeService, *memNoticeRepo, *recordingBus) {
	repo := &memNoticeRepo{notices: map[string]models.Notice{}}
	bus := &recordingBus{}
	classes := fakeClassLookup{classSevenID: {ClassRoom: models.ClassRoom{ID: classSevenID}}}
	svc := NewNoticeService(repo, classes, newTestResolver(), &recordingAudit{}, bus, nil, nil)
	svc.now = func() time.Time { return noticeNow }
	return svc, repo, bus
}

func TestNoticeCreatePublishesEvent(t *testing.T) {
	svc, _, bus := newNoticeFixture()
	notice, err := svc.Create(context.Background(), NoticeRequest{
		Title:    " Sports day ",
		Body:     "Bring your kit.",
		Audience: "Class",
		ClassID:  classSevenID,
	}, models.Actor{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "Sports day", notice.Title)
	assert.Equal(t, noticeNow, notice.PublishedAt)
	require.NotNil(t, notice.ClassID)
	require.Len(t, bus.events, 1)
	assert.Equal(t, events.TopicNoticePublished, bus.events[0].topic)
	payload := bus.events[0].payload.(events.NoticePublished)
	assert.Equal(t, models.AudienceClass, payload.Audience)
}

func TestNoticeValidation(t *testing.T) {
	svc, _, _ := newNoticeFixture()
	actor := models.Actor{UserID: "admin-1", Role: models.RoleAdmin}

	_, err := svc.Create(context.Background(), NoticeRequest{Title: "t", Body: "b", Audience: "class"}, actor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	past := noticeNow.Add(-time.Hour)
	_, err = svc.Create(context.Background(), NoticeRequest{Title: "t", Body: "b", Audience: "all", ExpiresAt: &past}, actor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), NoticeRequest{Title: "t", Body: "b", Audience: "class", ClassID: "7c1e2f9a-0000-4000-8000-000000000000"}, actor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestNoticeFeedScopesByRole(t *testing.T) {
	svc, repo, _ := newNoticeFixture()
	ctx := context.Background()

	_, _, err := svc.Feed(ctx, models.Actor{UserID: "par-user", Role: models.RoleGuardian}, models.NoticeFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{models.AudienceAll, models.AudienceGuardian, models.AudienceClass}, repo.lastFilter.Audiences)
	assert.Equal(t, []string{classSevenID}, repo.lastFilter.ClassIDs)
	require.NotNil(t, repo.lastFilter.ActiveAt)
	assert.Equal(t, noticeNow, *repo.lastFilter.ActiveAt)

	_, _, err = svc.Feed(ctx, models.Actor{UserID: "t1", Role: models.RoleTeacher}, models.NoticeFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{}, repo.lastFilter.ClassIDs)

	_, _, err = svc.Feed(ctx, models.Actor{UserID: "a1", Role: models.RoleAdmin}, models.NoticeFilter{Audiences: []string{"x"}})
	require.NoError(t, err)
	assert.Nil(t, repo.lastFilter.Audiences)
}

func TestNoticeUpdateKeepsPublishDate(t *testing.T) {
	svc, repo, _ := newNoticeFixture()
	published := noticeNow.AddDate(0, 0, -2)
	repo.notices["n9"] = models.Notice{ID: "n9", Title: "Old", Audience: "all", PublishedAt: published}

	updated, err := svc.Update(context.Background(), "n9", NoticeRequest{Title: "New", Body: "b", Audience: "all", Pinned: true})
	require.NoError(t, err)
	assert.Equal(t, published, updated.PublishedAt)
	assert.True(t, updated.Pinned)

	_, err = svc.Update(context.Background(), "missing", NoticeRequest{Title: "New", Body: "b", Audience: "all"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
