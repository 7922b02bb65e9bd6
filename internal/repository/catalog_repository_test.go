package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
)

func TestSubjectDeleteDropsDraftResultsOnly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM results r USING exams e\nWHERE r.exam_id = e.id AND r.subject_id = $1 AND e.is_result_published = FALSE")).
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subjects WHERE id = $1 AND NOT EXISTS (")).
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "sub-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectDeleteLockedByPublishedResults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM results r USING exams e")).
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("WHERE r.subject_id = $1 AND e.is_result_published)")).
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "sub-1")
	assert.ErrorIs(t, err, ErrLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectDeleteForeignKeyViolationIsLocked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM results r USING exams e")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subjects")).
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Delete(context.Background(), "sub-1"), ErrLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectUpdateLockedWhenMarkBoundsChangeUnderResults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("OR NOT EXISTS (SELECT 1 FROM results WHERE subject_id = ")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Subject{ID: "sub-1", Code: "MTH", Name: "Math", ClassID: "c1", FullMark: 50, PassMark: 20})
	assert.ErrorIs(t, err, ErrLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassDeleteGuardsPublishedExams(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("AND NOT EXISTS (SELECT 1 FROM exams e WHERE e.class_id = $1 AND e.is_result_published)")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM classes WHERE id = $1")).
		WithArgs("c2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.ErrorIs(t, repo.Delete(context.Background(), "c1"), ErrLocked)
	assert.NoError(t, repo.Delete(context.Background(), "c2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamUpdateKeepsClassOnceResultsExist(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("OR NOT EXISTS (SELECT 1 FROM results WHERE exam_id = ")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Exam{ID: "exam-1", Name: "Mid", ClassID: "c2"})
	assert.ErrorIs(t, err, ErrStaleWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}
