package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
)

func TestNoticeRepositoryAudienceFeed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNoticeRepository(db)

	now := time.Date(2026, 5, 4, 7, 0, 0, 0, time.UTC)
	columns := []string{"id", "title", "body", "audience", "class_id", "pinned", "published_at", "expires_at", "created_by", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE audience = ANY($1) AND (audience <> 'class' OR class_id = ANY($2)) AND published_at <= $3 AND (expires_at IS NULL OR expires_at > $3) ORDER BY pinned DESC, published_at DESC LIMIT 5 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(columns).AddRow("n-1", "Holiday", "School closed", "all", nil, true, now, nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notices WHERE audience = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	notices, total, err := repo.List(context.Background(), models.NoticeFilter{
		Audiences: models.AudiencesFor(models.RoleStudent),
		ClassIDs:  []string{"class-1"},
		ActiveAt:  &now,
		PageSize:  5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, notices, 1)
	assert.True(t, notices[0].Pinned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositorySlotTaken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	entry := models.TimetableEntry{ClassID: "class-1", TeacherID: "t-1", PeriodID: "p-1", DayOfWeek: 2}
	mock.ExpectQuery(regexp.QuoteMeta("AND (class_id = $3 OR teacher_id = $4) AND id <> $5)")).
		WithArgs(2, "p-1", "class-1", "t-1", "entry-9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.SlotTaken(context.Background(), entry, "entry-9")
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonPlanRepositoryTransitionGuard(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonPlanRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	reviewer := "admin-1"
	err := repo.Transition(context.Background(), "plan-1", models.LessonPlanSubmitted, models.LessonPlanApproved, &reviewer, nil)
	assert.ErrorIs(t, err, ErrStaleWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkAllRead(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read_at = $2 WHERE user_id = $1 AND read_at IS NULL")).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.MarkAllRead(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
