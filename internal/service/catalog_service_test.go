package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

const (
	classSevenID = "5e0b7a52-3c1e-4c8b-9f3e-6f8d0a1b2c01"
	teacherOneID = "5e0b7a52-3c1e-4c8b-9f3e-6f8d0a1b2c02"
	studentOneID = "5e0b7a52-3c1e-4c8b-9f3e-6f8d0a1b2c03"
	classEightID = "5e0b7a52-3c1e-4c8b-9f3e-6f8d0a1b2c04"
)

type memClassRepo struct {
	items   map[string]models.ClassDetail
	locked  map[string]bool
	deleted []string
}

func (m *memClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	return nil, 0, nil
}

func (m *memClassRepo) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	if class, ok := m.items[id]; ok {
		return &class, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memClassRepo) ExistsByNameSection(ctx context.Context, name, section, year, excludeID string) (bool, error) {
	for id, class := range m.items {
		if id != excludeID && class.Name == name && class.Section == section && class.AcademicYear == year {
			return true, nil
		}
	}
	return false, nil
}

func (m *memClassRepo) Create(ctx context.Context, class *models.ClassRoom) error {
	class.ID = "new-class"
	m.items[class.ID] = models.ClassDetail{ClassRoom: *class}
	return nil
}

func (m *memClassRepo) Update(ctx context.Context, class *models.ClassRoom) error {
	detail := m.items[class.ID]
	detail.ClassRoom = *class
	m.items[class.ID] = detail
	return nil
}

func (m *memClassRepo) Delete(ctx context.Context, id string) error {
	if m.locked[id] {
		return fmt.Errorf("delete class: %w", repository.ErrLocked)
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type fakeTeacherLookup map[string]models.TeacherDetail

func (f fakeTeacherLookup) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	if teacher, ok := f[id]; ok {
		return &teacher, nil
	}
	return nil, sql.ErrNoRows
}

func TestClassServiceCreateDefaultsCapacity(t *testing.T) {
	repo := &memClassRepo{items: map[string]models.ClassDetail{}}
	teachers := fakeTeacherLookup{teacherOneID: {Teacher: models.Teacher{ID: teacherOneID, Active: true}}}
	svc := NewClassService(repo, teachers, nil, nil)

	class, err := svc.Create(context.Background(), ClassRequest{Name: "Grade 7", Section: "A", GradeLevel: 7, AcademicYear: "2025/2026", ClassTeacherID: teacherOneID})
	require.NoError(t, err)
	assert.Equal(t, 40, class.Capacity)
	assert.Equal(t, teacherOneID, *class.ClassTeacherID)

	_, err = svc.Create(context.Background(), ClassRequest{Name: "Grade 7", Section: "A", GradeLevel: 7, AcademicYear: "2025/2026"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestClassServiceRejectsInactiveClassTeacher(t *testing.T) {
	repo := &memClassRepo{items: map[string]models.ClassDetail{}}
	teachers := fakeTeacherLookup{teacherOneID: {Teacher: models.Teacher{ID: teacherOneID}}}
	svc := NewClassService(repo, teachers, nil, nil)

	_, err := svc.Create(context.Background(), ClassRequest{Name: "Grade 8", Section: "B", GradeLevel: 8, AcademicYear: "2025/2026", ClassTeacherID: teacherOneID})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestClassServiceCapacityAndDeleteGuards(t *testing.T) {
	repo := &memClassRepo{items: map[string]models.ClassDetail{
		"c1": {ClassRoom: models.ClassRoom{ID: "c1", Name: "Grade 9", Section: "A", GradeLevel: 9, Capacity: 30, AcademicYear: "2025/2026"}, StudentCount: 25},
		"c2": {ClassRoom: models.ClassRoom{ID: "c2", Name: "Grade 9", Section: "B", GradeLevel: 9, Capacity: 30, AcademicYear: "2025/2026"}},
	}}
	svc := NewClassService(repo, fakeTeacherLookup{}, nil, nil)

	_, err := svc.Update(context.Background(), "c1", ClassRequest{Name: "Grade 9", Section: "A", GradeLevel: 9, Capacity: 20, AcademicYear: "2025/2026"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	err = svc.Delete(context.Background(), "c1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	require.NoError(t, svc.Delete(context.Background(), "c2"))
	assert.Equal(t, []string{"c2"}, repo.deleted)
}

type memSubjectRepo struct {
	items       map[string]models.Subject
	withResults map[string]bool
	published   map[string]bool
}

func (m *memSubjectRepo) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	return nil, 0, nil
}

func (m *memSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if subject, ok := m.items[id]; ok {
		return &subject, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memSubjectRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	for id, subject := range m.items {
		if id != excludeID && subject.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *memSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = "new-subject"
	m.items[subject.ID] = *subject
	return nil
}

func (m *memSubjectRepo) Update(ctx context.Context, subject *models.Subject) error {
	stored := m.items[subject.ID]
	pinned := stored.ClassID != subject.ClassID || stored.FullMark != subject.FullMark || stored.PassMark != subject.PassMark
	if pinned && m.withResults[subject.ID] {
		return fmt.Errorf("update subject: %w", repository.ErrLocked)
	}
	m.items[subject.ID] = *subject
	return nil
}

func (m *memSubjectRepo) Delete(ctx context.Context, id string) error {
	if m.published[id] {
		return fmt.Errorf("delete subject: %w", repository.ErrLocked)
	}
	delete(m.items, id)
	return nil
}

func TestSubjectServiceValidation(t *testing.T) {
	repo := &memSubjectRepo{items: map[string]models.Subject{"s1": {ID: "s1", Code: "MATH7"}}}
	classes := fakeClassLookup{classSevenID: {ClassRoom: models.ClassRoom{ID: classSevenID}}}
	svc := NewSubjectService(repo, classes, fakeTeacherLookup{}, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, SubjectRequest{Code: "sci7", Name: "Science", ClassID: classSevenID, FullMark: 100, PassMark: 120})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(ctx, SubjectRequest{Code: "math7", Name: "Maths", ClassID: classSevenID, FullMark: 100, PassMark: 40})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(ctx, SubjectRequest{Code: "SCI7", Name: "Science", ClassID: "0b9c3b7c-4d0c-4bb2-8f4f-1d6d5c2c7a10", FullMark: 100, PassMark: 40})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	subject, err := svc.Create(ctx, SubjectRequest{Code: " sci7 ", Name: "Science", ClassID: classSevenID, FullMark: 100, PassMark: 33})
	require.NoError(t, err)
	assert.Equal(t, "SCI7", subject.Code)
	assert.Nil(t, subject.TeacherID)
}

func TestClassServiceDeleteKeepsPublishedResults(t *testing.T) {
	repo := &memClassRepo{
		items:  map[string]models.ClassDetail{"c1": {ClassRoom: models.ClassRoom{ID: "c1", Name: "Grade 9", Section: "A"}}},
		locked: map[string]bool{"c1": true},
	}
	svc := NewClassService(repo, fakeTeacherLookup{}, nil, nil)

	err := svc.Delete(context.Background(), "c1")
	assert.True(t, errors.Is(err, appErrors.ErrPublished))
	assert.Empty(t, repo.deleted)
}

func TestSubjectServiceResultsPinMarkBounds(t *testing.T) {
	repo := &memSubjectRepo{
		items:       map[string]models.Subject{"s1": {ID: "s1", Code: "MATH7", Name: "Maths", ClassID: classSevenID, FullMark: 100, PassMark: 40}},
		withResults: map[string]bool{"s1": true},
	}
	classes := fakeClassLookup{
		classSevenID: {ClassRoom: models.ClassRoom{ID: classSevenID}},
		classEightID: {ClassRoom: models.ClassRoom{ID: classEightID}},
	}
	svc := NewSubjectService(repo, classes, fakeTeacherLookup{}, nil, nil)
	ctx := context.Background()

	for _, req := range []SubjectRequest{
		{Code: "MATH7", Name: "Maths", ClassID: classSevenID, FullMark: 50, PassMark: 40},
		{Code: "MATH7", Name: "Maths", ClassID: classSevenID, FullMark: 100, PassMark: 33},
		{Code: "MATH7", Name: "Maths", ClassID: classEightID, FullMark: 100, PassMark: 40},
	} {
		_, err := svc.Update(ctx, "s1", req)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	}
	assert.Equal(t, 100.0, repo.items["s1"].FullMark)

	subject, err := svc.Update(ctx, "s1", SubjectRequest{Code: "MATH7", Name: "Mathematics", ClassID: classSevenID, FullMark: 100, PassMark: 40})
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", subject.Name)
}

func TestSubjectServiceDeleteRefusedForPublishedResults(t *testing.T) {
	repo := &memSubjectRepo{
		items:     map[string]models.Subject{"s1": {ID: "s1", Code: "MATH7"}, "s2": {ID: "s2", Code: "SCI7"}},
		published: map[string]bool{"s1": true},
	}
	svc := NewSubjectService(repo, fakeClassLookup{}, fakeTeacherLookup{}, nil, nil)

	err := svc.Delete(context.Background(), "s1")
	assert.True(t, errors.Is(err, appErrors.ErrPublished))
	assert.Contains(t, repo.items, "s1")

	require.NoError(t, svc.Delete(context.Background(), "s2"))
	assert.NotContains(t, repo.items, "s2")
}

type memGuardianRepo struct {
	guardians map[string]models.Guardian
	links     map[string][]models.GuardianLink
}

func (m *memGuardianRepo) List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, int, error) {
	return nil, 0, nil
}

func (m *memGuardianRepo) FindByID(ctx context.Context, id string) (*models.Guardian, error) {
	if guardian, ok := m.guardians[id]; ok {
		return &guardian, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memGuardianRepo) Create(ctx context.Context, guardian *models.Guardian) error {
	guardian.ID = "g-new"
	m.guardians[guardian.ID] = *guardian
	return nil
}

func (m *memGuardianRepo) Update(ctx context.Context, guardian *models.Guardian) error {
	m.guardians[guardian.ID] = *guardian
	return nil
}

func (m *memGuardianRepo) Delete(ctx context.Context, id string) error {
	delete(m.guardians, id)
	return nil
}

func (m *memGuardianRepo) Link(ctx context.Context, guardianID, studentID, relation string, primary bool) error {
	links := m.links[guardianID]
	for i := range links {
		if links[i].StudentID == studentID {
			links[i].Relation = relation
			links[i].IsPrimary = primary
			return nil
		}
	}
	m.links[guardianID] = append(links, models.GuardianLink{GuardianID: guardianID, StudentID: studentID, Relation: relation, IsPrimary: primary})
	return nil
}

func (m *memGuardianRepo) Unlink(ctx context.Context, guardianID, studentID string) error {
	var kept []models.GuardianLink
	for _, link := range m.links[guardianID] {
		if link.StudentID != studentID {
			kept = append(kept, link)
		}
	}
	m.links[guardianID] = kept
	return nil
}

func (m *memGuardianRepo) ListStudents(ctx context.Context, guardianID string) ([]models.GuardianLink, error) {
	return m.links[guardianID], nil
}

type fakeStudentLookup map[string]models.StudentDetail

func (f fakeStudentLookup) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if student, ok := f[id]; ok {
		return &student, nil
	}
	return nil, sql.ErrNoRows
}

func TestGuardianServiceLinkLifecycle(t *testing.T) {
	repo := &memGuardianRepo{
		guardians: map[string]models.Guardian{"g1": {ID: "g1", FullName: "Hasan"}},
		links:     map[string][]models.GuardianLink{},
	}
	students := fakeStudentLookup{studentOneID: {Student: models.Student{ID: studentOneID}}}
	svc := NewGuardianService(repo, students, nil, nil)
	ctx := context.Background()

	detail, err := svc.LinkStudent(ctx, "g1", GuardianLinkRequest{StudentID: studentOneID, Relation: "Father"})
	require.NoError(t, err)
	require.Len(t, detail.Students, 1)
	assert.Equal(t, "father", detail.Students[0].Relation)

	detail, err = svc.LinkStudent(ctx, "g1", GuardianLinkRequest{StudentID: studentOneID, Relation: "guardian", IsPrimary: true})
	require.NoError(t, err)
	require.Len(t, detail.Students, 1)
	assert.True(t, detail.Students[0].IsPrimary)

	_, err = svc.LinkStudent(ctx, "g1", GuardianLinkRequest{StudentID: studentOneID, Relation: "uncle"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.LinkStudent(ctx, "g1", GuardianLinkRequest{StudentID: teacherOneID, Relation: "mother"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, svc.UnlinkStudent(ctx, "g1", studentOneID))
	detail, err = svc.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, detail.Students)
}

type memAccountantRepo struct {
	items map[string]models.Accountant
}

func (m *memAccountantRepo) List(ctx context.Context, filter models.AccountantFilter) ([]models.Accountant, int, error) {
	return nil, 0, nil
}

func (m *memAccountantRepo) FindByID(ctx context.Context, id string) (*models.Accountant, error) {
	if a, ok := m.items[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memAccountantRepo) Create(ctx context.Context, a *models.Accountant) error {
	a.ID = "acc-new"
	m.items[a.ID] = *a
	return nil
}

func (m *memAccountantRepo) Update(ctx context.Context, a *models.Accountant) error {
	m.items[a.ID] = *a
	return nil
}

func (m *memAccountantRepo) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

func TestAccountantServiceLimits(t *testing.T) {
	svc := NewAccountantService(&memAccountantRepo{items: map[string]models.Accountant{}}, nil, nil)

	_, err := svc.Create(context.Background(), AccountantRequest{FullName: "Fatimah", MaxWaiverPercentage: 150})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	acc, err := svc.Create(context.Background(), AccountantRequest{FullName: "Fatimah", MaxWaiverAmount: 250.126, MaxWaiverPercentage: 10})
	require.NoError(t, err)
	assert.True(t, acc.Active)
	assert.Equal(t, 250.13, acc.MaxWaiverAmount)
}
