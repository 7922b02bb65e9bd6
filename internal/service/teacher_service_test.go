package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type mockTeacherRepo struct {
	items       map[string]*models.TeacherDetail
	employeeNos map[string]string
	listResult  []models.TeacherDetail
	listTotal   int
	listErr     error
	deactivated []string
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	if teacher, ok := m.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) ExistsByEmployeeNo(ctx context.Context, employeeNo, excludeID string) (bool, error) {
	owner, ok := m.employeeNos[employeeNo]
	return ok && owner != excludeID, nil
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	if m.items == nil {
		m.items = make(map[string]*models.TeacherDetail)
	}
	if teacher.ID == "" {
		teacher.ID = "generated"
	}
	m.items[teacher.ID] = &models.TeacherDetail{Teacher: *teacher}
	return nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	m.items[teacher.ID] = &models.TeacherDetail{Teacher: *teacher}
	return nil
}

func (m *mockTeacherRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	m.items[id].Active = false
	return nil
}

type fakeDepartmentLookup map[string]models.DepartmentDetail

func (f fakeDepartmentLookup) FindByID(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	if dept, ok := f[id]; ok {
		return &dept, nil
	}
	return nil, sql.ErrNoRows
}

const sciDepartmentID = "7d6a2f7e-4c55-4c2a-9c43-0d2b1f1f0a01"

func newTeacherService(repo *mockTeacherRepo) *TeacherService {
	departments := fakeDepartmentLookup{sciDepartmentID: {Department: models.Department{ID: sciDepartmentID, Code: "SCI"}}}
	return NewTeacherService(repo, departments, validator.New(), zap.NewNop())
}

func TestTeacherServiceCreate(t *testing.T) {
	repo := &mockTeacherRepo{}
	svc := newTeacherService(repo)

	teacher, err := svc.Create(context.Background(), TeacherRequest{
		EmployeeNo:   " T-001 ",
		FullName:     "Aisyah Rahman",
		Email:        "Aisyah@School.test",
		DepartmentID: sciDepartmentID,
	})
	require.NoError(t, err)
	assert.Equal(t, "T-001", teacher.EmployeeNo)
	assert.Equal(t, "aisyah@school.test", *teacher.Email)
	assert.True(t, teacher.Active)
	assert.Nil(t, teacher.Phone)
}

func TestTeacherServiceCreateRejectsDuplicateEmployeeNo(t *testing.T) {
	repo := &mockTeacherRepo{employeeNos: map[string]string{"T-001": "existing"}}
	svc := newTeacherService(repo)

	_, err := svc.Create(context.Background(), TeacherRequest{EmployeeNo: "T-001", FullName: "Dup"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestTeacherServiceCreateRejectsUnknownDepartment(t *testing.T) {
	svc := newTeacherService(&mockTeacherRepo{})

	_, err := svc.Create(context.Background(), TeacherRequest{
		EmployeeNo:   "T-002",
		FullName:     "Bilal",
		DepartmentID: "0b9c3b7c-4d0c-4bb2-8f4f-1d6d5c2c7a10",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTeacherServiceUpdateKeepsOwnEmployeeNo(t *testing.T) {
	repo := &mockTeacherRepo{
		items:       map[string]*models.TeacherDetail{"t1": {Teacher: models.Teacher{ID: "t1", EmployeeNo: "T-001", FullName: "Old", Active: true}}},
		employeeNos: map[string]string{"T-001": "t1"},
	}
	svc := newTeacherService(repo)

	updated, err := svc.Update(context.Background(), "t1", TeacherRequest{EmployeeNo: "T-001", FullName: "New Name"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.FullName)
	assert.True(t, updated.Active)
}

func TestTeacherServiceDeleteDeactivates(t *testing.T) {
	repo := &mockTeacherRepo{items: map[string]*models.TeacherDetail{"t1": {Teacher: models.Teacher{ID: "t1", Active: true}}}}
	svc := newTeacherService(repo)

	require.NoError(t, svc.Delete(context.Background(), "t1"))
	assert.Equal(t, []string{"t1"}, repo.deactivated)

	err := svc.Delete(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestTeacherServiceListPagination(t *testing.T) {
	repo := &mockTeacherRepo{listResult: []models.TeacherDetail{{Teacher: models.Teacher{ID: "t1"}}}, listTotal: 41}
	svc := newTeacherService(repo)

	items, pagination, err := svc.List(context.Background(), models.TeacherFilter{Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 41, pagination.TotalCount)
	assert.Equal(t, 2, pagination.Page)

	repo.listErr = errors.New("boom")
	_, _, err = svc.List(context.Background(), models.TeacherFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
