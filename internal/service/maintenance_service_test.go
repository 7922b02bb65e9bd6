package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
)

type memRoleStore struct {
	roles       []models.Role
	users       []models.User
	assignments map[string][]models.UserRole
	legacy      map[string]models.UserRole
	removed     []string
}

func (m *memRoleStore) ListRoles(ctx context.Context) ([]models.Role, error) { return m.roles, nil }

func (m *memRoleStore) CreateRole(ctx context.Context, role *models.Role) error {
	m.roles = append(m.roles, *role)
	return nil
}

func (m *memRoleStore) ListAll(ctx context.Context) ([]models.User, error) { return m.users, nil }

func (m *memRoleStore) ListAssignments(ctx context.Context) (map[string][]models.UserRole, error) {
	out := make(map[string][]models.UserRole, len(m.assignments))
	for k, v := range m.assignments {
		out[k] = append([]models.UserRole(nil), v...)
	}
	return out, nil
}

func (m *memRoleStore) SetLegacyRole(ctx context.Context, id string, role models.UserRole) error {
	m.legacy[id] = role
	return nil
}

func (m *memRoleStore) AssignRole(ctx context.Context, userID string, role models.UserRole) error {
	m.assignments[userID] = append(m.assignments[userID], role)
	return nil
}

func (m *memRoleStore) RemoveRole(ctx context.Context, userID string, role models.UserRole) error {
	m.removed = append(m.removed, userID+":"+string(role))
	return nil
}

type staticIntegrity struct {
	fees []models.Fee
}

func (s staticIntegrity) MissingProfiles(ctx context.Context) ([]models.IntegrityIssue, error) {
	return []models.IntegrityIssue{{Check: models.CheckMissingProfile, EntityID: "u-ghost"}}, nil
}

func (s staticIntegrity) StudentsWithoutClass(ctx context.Context) ([]models.IntegrityIssue, error) {
	return nil, nil
}

func (s staticIntegrity) ResultClassMismatches(ctx context.Context) ([]models.IntegrityIssue, error) {
	return nil, nil
}

func (s staticIntegrity) InstallmentSumMismatches(ctx context.Context) ([]models.IntegrityIssue, error) {
	return nil, nil
}

func (s staticIntegrity) Fees(ctx context.Context) ([]models.Fee, error) { return s.fees, nil }

type recordingStatusWriter map[string]models.FeeStatus

func (r recordingStatusWriter) UpdateStatus(ctx context.Context, id string, status models.FeeStatus) error {
	r[id] = status
	return nil
}

func newRoleStore() *memRoleStore {
	return &memRoleStore{
		roles: []models.Role{{Name: models.RoleAdmin}, {Name: models.RoleTeacher}},
		users: []models.User{
			{ID: "u1", Email: "admin@example.com", Role: models.RoleAdmin},
			{ID: "u2", Email: "blank@example.com"},
			{ID: "u3", Email: "teacher@example.com", Role: models.RoleTeacher},
			{ID: "u4", Email: "odd@example.com", Role: "JANITOR"},
		},
		assignments: map[string][]models.UserRole{
			"u1": {models.RoleAdmin},
			"u2": {models.RoleStudent, models.RoleTeacher},
			"u3": {models.RoleTeacher, models.RoleStaff},
		},
		legacy: map[string]models.UserRole{},
	}
}

func countActions(changes []models.RoleSyncChange, action string) int {
	n := 0
	for _, c := range changes {
		if c.Action == action {
			n++
		}
	}
	return n
}

func TestSyncRolesDryRunWritesNothing(t *testing.T) {
	store := newRoleStore()
	svc := NewMaintenanceService(store, staticIntegrity{}, recordingStatusWriter{}, nil, nil)

	report, err := svc.SyncRoles(context.Background(), RoleSyncOptions{DryRun: true, Prune: true}, models.Actor{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.UsersScanned)
	assert.Equal(t, 5, countActions(report.Changes, models.RoleSyncCreateRole))
	assert.Equal(t, 1, countActions(report.Changes, models.RoleSyncFillLegacy))
	assert.Equal(t, 1, countActions(report.Changes, models.RoleSyncUnknownRole))
	assert.Equal(t, 2, countActions(report.Changes, models.RoleSyncPrune))
	assert.Len(t, store.roles, 2)
	assert.Empty(t, store.legacy)
	assert.Empty(t, store.removed)
}

func TestSyncRolesApplies(t *testing.T) {
	store := newRoleStore()
	audit := &recordingAudit{}
	svc := NewMaintenanceService(store, staticIntegrity{}, recordingStatusWriter{}, audit, nil)

	report, err := svc.SyncRoles(context.Background(), RoleSyncOptions{Prune: true}, models.Actor{UserID: "root"})
	require.NoError(t, err)
	assert.False(t, report.DryRun)
	assert.Len(t, store.roles, len(models.AllRoles))
	assert.Equal(t, models.RoleTeacher, store.legacy["u2"])
	assert.ElementsMatch(t, []string{"u2:STUDENT", "u3:STAFF"}, store.removed)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionRoleSync, audit.logs[0].Action)
}

func TestPlanUserRolesAssignsMissingLegacy(t *testing.T) {
	changes := planUserRoles(models.User{ID: "u9", Role: models.RoleGuardian}, nil, false)
	require.Len(t, changes, 1)
	assert.Equal(t, models.RoleSyncAssign, changes[0].Action)
	assert.Equal(t, models.RoleGuardian, changes[0].Role)

	assert.Empty(t, planUserRoles(models.User{ID: "u10"}, nil, true))
}

func TestCheckIntegrityFixesFeeStatuses(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	integrity := staticIntegrity{fees: []models.Fee{
		{ID: "f-paid", Amount: 100, PaidAmount: 100, Status: models.FeePartial, DueDate: due},
		{ID: "f-ok", Amount: 100, PaidAmount: 100, Status: models.FeePaid, DueDate: due},
		{ID: "f-late", Amount: 100, PaidAmount: 20, Status: models.FeePartial, DueDate: due},
	}}
	writer := recordingStatusWriter{}
	store := newRoleStore()
	svc := NewMaintenanceService(store, integrity, writer, &recordingAudit{}, nil)
	svc.now = func() time.Time { return time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) }

	dry, err := svc.CheckIntegrity(context.Background(), false, models.Actor{})
	require.NoError(t, err)
	assert.Empty(t, writer)
	assert.Nil(t, dry.RoleSync)
	var feeIssues int
	for _, issue := range dry.Issues {
		if issue.Check == models.CheckFeeStatus {
			feeIssues++
			assert.False(t, issue.Fixed)
		}
	}
	assert.Equal(t, 2, feeIssues)

	fixed, err := svc.CheckIntegrity(context.Background(), true, models.Actor{UserID: "root"})
	require.NoError(t, err)
	assert.Equal(t, 2, fixed.FeesRepaired)
	assert.Equal(t, models.FeePaid, writer["f-paid"])
	assert.Equal(t, models.FeeOverdue, writer["f-late"])
	require.NotNil(t, fixed.RoleSync)
	assert.Equal(t, models.RoleTeacher, store.legacy["u2"])
}
