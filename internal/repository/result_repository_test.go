package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
)

func TestResultRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT is_result_published FROM exams WHERE id = $1 FOR UPDATE")).
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows([]string{"is_result_published"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id, exam_id, subject_id)")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id, exam_id, subject_id)")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("new-id"))
	mock.ExpectCommit()

	results := []models.Result{
		{StudentID: "s1", SubjectID: "math", MarksObtained: 75, Percentage: 75, Grade: "B", GPAPoint: 3, IsPassed: true},
		{StudentID: "s1", SubjectID: "arabic", MarksObtained: 35, Percentage: 35, Grade: "F", IsPassed: false},
	}
	require.NoError(t, repo.BulkUpsert(context.Background(), "exam-1", results))
	assert.Equal(t, "existing-id", results[0].ID)
	assert.Equal(t, "exam-1", results[1].ExamID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryBulkUpsertRejectsPublishedExam(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT is_result_published FROM exams").
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows([]string{"is_result_published"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.BulkUpsert(context.Background(), "exam-1", []models.Result{{StudentID: "s1", SubjectID: "math"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryDeleteGuardedByPublish(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM results WHERE id = $1 AND NOT EXISTS")).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrStaleWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}
