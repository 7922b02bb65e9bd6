package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExamRepositoryMarkPublishedOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET is_result_published = TRUE")).
		WithArgs("exam-1", at, "admin-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET is_result_published = TRUE")).
		WithArgs("exam-1", at, "admin-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkPublished(context.Background(), "exam-1", "admin-1", at))
	err := repo.MarkPublished(context.Background(), "exam-1", "admin-1", at)
	assert.ErrorIs(t, err, ErrStaleWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryMissingResults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN results r ON r.exam_id = e.id AND r.student_id = s.id AND r.subject_id = sub.id")).
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "student_name", "subject_id", "subject_name"}).
			AddRow("s2", "Budi", "math", "Mathematics"))

	missing, err := repo.MissingResults(context.Background(), "exam-1")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "Mathematics", missing[0].SubjectName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryStudentTotals(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN students s ON s.class_id = e.class_id AND s.active = TRUE\n"+
		"JOIN results r ON r.exam_id = e.id AND r.student_id = s.id\n"+
		"JOIN subjects sub ON sub.id = r.subject_id AND sub.class_id = e.class_id\n"+
		"WHERE e.id = $1\nGROUP BY s.id, s.full_name, s.admission_no, s.roll_no")).
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "student_name", "admission_no", "roll_no", "total_marks", "total_full_mark", "failed_count"}).
			AddRow("s1", "Ahmad", "ADM-1", nil, 180.0, 200.0, 0))

	totals, err := repo.StudentTotals(context.Background(), "exam-1")
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, 180.0, totals[0].TotalMarks)
	assert.NoError(t, mock.ExpectationsWereMet())
}
