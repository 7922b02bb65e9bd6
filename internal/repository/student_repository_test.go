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

var studentRowColumns = []string{"id", "user_id", "admission_no", "roll_no", "full_name", "gender", "birth_date", "address", "phone", "class_id", "admission_date", "active", "created_at", "updated_at", "class_name"}

func TestStudentRepositoryListByClass(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	active := true
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s LEFT JOIN classes c ON c.id = s.class_id WHERE s.class_id = $1 AND s.active = $2 ORDER BY s.full_name ASC LIMIT 20 OFFSET 0")).
		WithArgs("class-1", true).
		WillReturnRows(sqlmock.NewRows(studentRowColumns).
			AddRow("s1", nil, "ADM-1", "1", "Aisyah", "F", now, nil, nil, "class-1", now, true, now, now, "7A"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s WHERE s.class_id = $1 AND s.active = $2")).
		WithArgs("class-1", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{ClassID: "class-1", Active: &active, SortBy: "full_name", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "7A", *students[0].ClassName)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{AdmissionNo: "ADM-2", FullName: "Yusuf", Gender: "M", Active: true}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.False(t, student.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByAdmissionNo(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("ADM-1", "s2").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByAdmissionNo(context.Background(), "ADM-1", "s2")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
