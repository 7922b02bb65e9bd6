package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type memAttendanceRepo struct {
	written []models.Attendance
	summary models.AttendanceSummary
}

func (m *memAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	return nil, 0, nil
}

func (m *memAttendanceRepo) FindByID(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	return nil, sql.ErrNoRows
}

func (m *memAttendanceRepo) BulkUpsert(ctx context.Context, records []models.Attendance) error {
	m.written = append(m.written, records...)
	return nil
}

func (m *memAttendanceRepo) Update(ctx context.Context, record *models.Attendance) error { return nil }

func (m *memAttendanceRepo) Delete(ctx context.Context, id string) error { return nil }

func (m *memAttendanceRepo) Summary(ctx context.Context, filter models.AttendanceFilter) (models.AttendanceSummary, error) {
	return m.summary, nil
}

var rollCallDay = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newAttendanceFixture() (*AttendanceService, *memAttendanceRepo) {
	repo := &memAttendanceRepo{}
	classes := fakeClassLookup{classSevenID: {ClassRoom: models.ClassRoom{ID: classSevenID}}}
	roster := staticRoster{
		{Student: models.Student{ID: "s1"}},
		{Student: models.Student{ID: "s2"}},
	}
	svc := NewAttendanceService(repo, classes, roster, nil, nil)
	svc.now = func() time.Time { return rollCallDay }
	return svc, repo
}

func TestAttendanceServiceMarkClass(t *testing.T) {
	svc, repo := newAttendanceFixture()

	records, err := svc.MarkClass(context.Background(), ClassAttendanceRequest{
		ClassID: classSevenID,
		Date:    "2025-03-10",
		Marks: []models.AttendanceMark{
			{StudentID: "s1", Status: models.AttendancePresent},
			{StudentID: "s2", Status: models.AttendanceLate, Remarks: "bus"},
		},
	}, models.Actor{UserID: "teacher-1"})
	require.NoError(t, err)
	require.Len(t, repo.written, 2)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), records[0].Date)
	assert.Equal(t, "bus", *records[1].Remarks)
	assert.Equal(t, "teacher-1", *records[0].RecordedBy)
}

func TestAttendanceServiceMarkClassRejects(t *testing.T) {
	svc, repo := newAttendanceFixture()
	ctx := context.Background()

	_, err := svc.MarkClass(ctx, ClassAttendanceRequest{ClassID: classSevenID, Date: "2025-03-11", Marks: []models.AttendanceMark{{StudentID: "s1", Status: "present"}}}, models.Actor{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "future date")

	_, err = svc.MarkClass(ctx, ClassAttendanceRequest{ClassID: classSevenID, Date: "2025-03-10", Marks: []models.AttendanceMark{{StudentID: "s1", Status: "asleep"}}}, models.Actor{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "bad status")

	_, err = svc.MarkClass(ctx, ClassAttendanceRequest{ClassID: classSevenID, Date: "2025-03-10", Marks: []models.AttendanceMark{
		{StudentID: "s1", Status: "present"}, {StudentID: "s1", Status: "absent"},
	}}, models.Actor{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "duplicate student")

	_, err = svc.MarkClass(ctx, ClassAttendanceRequest{ClassID: classSevenID, Date: "2025-03-10", Marks: []models.AttendanceMark{{StudentID: "s9", Status: "present"}}}, models.Actor{})
	require.Error(t, err)
	assert.Equal(t, map[string]interface{}{"students": []string{"s9"}}, appErrors.FromError(err).Details)
	assert.Empty(t, repo.written)
}

func TestAttendanceServiceSummaryRate(t *testing.T) {
	svc, repo := newAttendanceFixture()
	repo.summary = models.AttendanceSummary{Present: 15, Late: 1, Absent: 2, Excused: 2, Total: 20}

	summary, err := svc.Summary(context.Background(), models.AttendanceFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 80.0, summary.Rate)

	repo.summary = models.AttendanceSummary{}
	summary, err = svc.Summary(context.Background(), models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.Rate)
}

type memTeacherAttendanceRepo struct {
	rows       map[string]*models.TeacherAttendanceDetail
	checkedOut map[string]bool
}

func (m *memTeacherAttendanceRepo) List(ctx context.Context, filter models.TeacherAttendanceFilter) ([]models.TeacherAttendanceDetail, int, error) {
	return nil, 0, nil
}

func (m *memTeacherAttendanceRepo) FindByTeacherDate(ctx context.Context, teacherID string, date time.Time) (*models.TeacherAttendanceDetail, error) {
	if row, ok := m.rows[teacherID+date.Format(dateLayout)]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memTeacherAttendanceRepo) Upsert(ctx context.Context, record *models.TeacherAttendance) error {
	if record.ID == "" {
		record.ID = "ta-" + record.TeacherID
	}
	m.rows[record.TeacherID+record.Date.Format(dateLayout)] = &models.TeacherAttendanceDetail{TeacherAttendance: *record}
	return nil
}

func (m *memTeacherAttendanceRepo) SetCheckOut(ctx context.Context, id string, at time.Time) error {
	if m.checkedOut[id] {
		return fmt.Errorf("check out: %w", repository.ErrStaleWrite)
	}
	m.checkedOut[id] = true
	return nil
}

func (m *memTeacherAttendanceRepo) Delete(ctx context.Context, id string) error { return nil }

func (m *memTeacherAttendanceRepo) Summary(ctx context.Context, filter models.TeacherAttendanceFilter) (models.AttendanceSummary, error) {
	return models.AttendanceSummary{}, nil
}

type fakeTeacherByUser map[string]models.TeacherDetail

func (f fakeTeacherByUser) FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error) {
	if teacher, ok := f[userID]; ok {
		return &teacher, nil
	}
	return nil, sql.ErrNoRows
}

func TestTeacherAttendanceCheckInAndOut(t *testing.T) {
	repo := &memTeacherAttendanceRepo{rows: map[string]*models.TeacherAttendanceDetail{}, checkedOut: map[string]bool{}}
	byUser := fakeTeacherByUser{"user-1": {Teacher: models.Teacher{ID: teacherOneID}}}
	svc := NewTeacherAttendanceService(repo, fakeTeacherLookup{}, byUser, 0, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 7, 45, 0, 0, time.UTC) }
	ctx := context.Background()

	record, err := svc.CheckIn(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceLate, record.Status)

	_, err = svc.CheckIn(ctx, "user-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	row, err := svc.CheckOut(ctx, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, row.CheckOut)

	_, err = svc.CheckOut(ctx, "user-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.CheckIn(ctx, "user-2")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestTeacherAttendanceCheckOutWithoutCheckIn(t *testing.T) {
	repo := &memTeacherAttendanceRepo{rows: map[string]*models.TeacherAttendanceDetail{}, checkedOut: map[string]bool{}}
	byUser := fakeTeacherByUser{"user-1": {Teacher: models.Teacher{ID: teacherOneID}}}
	svc := NewTeacherAttendanceService(repo, fakeTeacherLookup{}, byUser, 8*time.Hour, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 7, 45, 0, 0, time.UTC) }

	_, err := svc.CheckOut(context.Background(), "user-1")
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	record, err := svc.CheckIn(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.AttendancePresent, record.Status)
}
