package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
)

type roleStore interface {
	ListRoles(ctx context.Context) ([]models.Role, error)
	CreateRole(ctx context.Context, role *models.Role) error
	ListAll(ctx context.Context) ([]models.User, error)
	ListAssignments(ctx context.Context) (map[string][]models.UserRole, error)
	SetLegacyRole(ctx context.Context, id string, role models.UserRole) error
	AssignRole(ctx context.Context, userID string, role models.UserRole) error
	RemoveRole(ctx context.Context, userID string, role models.UserRole) error
}

type integrityChecker interface {
	MissingProfiles(ctx context.Context) ([]models.IntegrityIssue, error)
	StudentsWithoutClass(ctx context.Context) ([]models.IntegrityIssue, error)
	ResultClassMismatches(ctx context.Context) ([]models.IntegrityIssue, error)
	InstallmentSumMismatches(ctx context.Context) ([]models.IntegrityIssue, error)
	Fees(ctx context.Context) ([]models.Fee, error)
}

type feeStatusWriter interface {
	UpdateStatus(ctx context.Context, id string, status models.FeeStatus) error
}

// RoleSyncOptions controls a role synchronisation run.
type RoleSyncOptions struct {
	DryRun bool `json:"dry_run"`
	Prune  bool `json:"prune"`
}

// MaintenanceService reconciles the legacy role column with permission roles and checks data integrity.
type MaintenanceService struct {
	roles     roleStore
	integrity integrityChecker
	fees      feeStatusWriter
	audit     auditLogger
	logger    *zap.Logger
	now       func() time.Time
}

// NewMaintenanceService constructs MaintenanceService.
func NewMaintenanceService(roles roleStore, integrity integrityChecker, fees feeStatusWriter, audit auditLogger, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{roles: roles, integrity: integrity, fees: fees, audit: audit, logger: logger, now: time.Now}
}

// SyncRoles makes every known role exist, assigns each user its legacy role, fills empty legacy
// columns from the highest-priority assignment and, with Prune, removes disagreeing assignments.
func (s *MaintenanceService) SyncRoles(ctx context.Context, opts RoleSyncOptions, actor models.Actor) (*models.RoleSyncReport, error) {
	report := &models.RoleSyncReport{DryRun: opts.DryRun, Pruned: opts.Prune, Changes: []models.RoleSyncChange{}}

	existing, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list roles")
	}
	known := make(map[models.UserRole]struct{}, len(existing))
	for _, role := range existing {
		known[role.Name] = struct{}{}
	}
	for _, role := range models.AllRoles {
		if _, ok := known[role]; ok {
			continue
		}
		report.Changes = append(report.Changes, models.RoleSyncChange{Action: models.RoleSyncCreateRole, Role: role})
		if !opts.DryRun {
			if err := s.roles.CreateRole(ctx, &models.Role{Name: role}); err != nil {
				return nil, internalError(err, "failed to create role")
			}
		}
	}

	users, err := s.roles.ListAll(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list users")
	}
	assignments, err := s.roles.ListAssignments(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list role assignments")
	}
	report.UsersScanned = len(users)

	for _, user := range users {
		changes := planUserRoles(user, assignments[user.ID], opts.Prune)
		for _, change := range changes {
			report.Changes = append(report.Changes, change)
			if opts.DryRun {
				continue
			}
			if err := s.applyRoleChange(ctx, change); err != nil {
				return nil, internalError(err, "failed to apply role change")
			}
		}
	}

	if !opts.DryRun {
		recordAudit(ctx, s.audit, s.logger, actorAudit(actor, models.AuditActionRoleSync, "roles", "", map[string]interface{}{
			"changes": len(report.Changes),
			"pruned":  opts.Prune,
		}))
	}
	s.logger.Info("role sync finished",
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("prune", opts.Prune),
		zap.Int("users", report.UsersScanned),
		zap.Int("changes", len(report.Changes)),
	)
	return report, nil
}

func (s *MaintenanceService) applyRoleChange(ctx context.Context, change models.RoleSyncChange) error {
	switch change.Action {
	case models.RoleSyncFillLegacy:
		return s.roles.SetLegacyRole(ctx, change.UserID, change.Role)
	case models.RoleSyncAssign:
		return s.roles.AssignRole(ctx, change.UserID, change.Role)
	case models.RoleSyncPrune:
		return s.roles.RemoveRole(ctx, change.UserID, change.Role)
	default:
		return nil
	}
}

// planUserRoles lists the changes needed to reconcile one user.
func planUserRoles(user models.User, assigned []models.UserRole, prune bool) []models.RoleSyncChange {
	var changes []models.RoleSyncChange
	legacy := user.Role
	if legacy == "" {
		best := highestPriority(assigned)
		if best == "" {
			return nil
		}
		changes = append(changes, models.RoleSyncChange{UserID: user.ID, Email: user.Email, Action: models.RoleSyncFillLegacy, Role: best})
		legacy = best
	}
	if !legacy.Valid() {
		return append(changes, models.RoleSyncChange{UserID: user.ID, Email: user.Email, Action: models.RoleSyncUnknownRole, Role: legacy})
	}
	if !containsRole(assigned, legacy) {
		changes = append(changes, models.RoleSyncChange{UserID: user.ID, Email: user.Email, Action: models.RoleSyncAssign, Role: legacy})
	}
	if prune {
		for _, role := range assigned {
			if role != legacy {
				changes = append(changes, models.RoleSyncChange{UserID: user.ID, Email: user.Email, Action: models.RoleSyncPrune, Role: role})
			}
		}
	}
	return changes
}

func highestPriority(roles []models.UserRole) models.UserRole {
	valid := make([]models.UserRole, 0, len(roles))
	for _, role := range roles {
		if role.Valid() {
			valid = append(valid, role)
		}
	}
	if len(valid) == 0 {
		return ""
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Priority() < valid[j].Priority() })
	return valid[0]
}

func containsRole(roles []models.UserRole, target models.UserRole) bool {
	for _, role := range roles {
		if role == target {
			return true
		}
	}
	return false
}

// CheckIntegrity runs every consistency check. With fix, fee statuses are recomputed and roles synced.
func (s *MaintenanceService) CheckIntegrity(ctx context.Context, fix bool, actor models.Actor) (*models.IntegrityReport, error) {
	report := &models.IntegrityReport{Fix: fix, Issues: []models.IntegrityIssue{}}

	checks := []func(context.Context) ([]models.IntegrityIssue, error){
		s.integrity.MissingProfiles,
		s.integrity.StudentsWithoutClass,
		s.integrity.ResultClassMismatches,
		s.integrity.InstallmentSumMismatches,
	}
	for _, check := range checks {
		issues, err := check(ctx)
		if err != nil {
			return nil, internalError(err, "integrity check failed")
		}
		report.Issues = append(report.Issues, issues...)
	}

	fees, err := s.integrity.Fees(ctx)
	if err != nil {
		return nil, internalError(err, "failed to load fees")
	}
	now := s.now().UTC()
	for _, fee := range fees {
		expected := fee.ResolveStatus(now)
		if expected == fee.Status {
			continue
		}
		issue := models.IntegrityIssue{
			Check:    models.CheckFeeStatus,
			EntityID: fee.ID,
			Detail:   string(fee.Status) + " should be " + string(expected),
		}
		if fix {
			if err := s.fees.UpdateStatus(ctx, fee.ID, expected); err != nil {
				return nil, internalError(err, "failed to repair fee status")
			}
			issue.Fixed = true
			report.FeesRepaired++
		}
		report.Issues = append(report.Issues, issue)
	}

	sync, err := s.SyncRoles(ctx, RoleSyncOptions{DryRun: !fix}, actor)
	if err != nil {
		return nil, err
	}
	for _, change := range sync.Changes {
		if change.UserID == "" {
			continue
		}
		report.Issues = append(report.Issues, models.IntegrityIssue{
			Check:    models.CheckRoleOutOfSync,
			EntityID: change.UserID,
			Detail:   change.Action + " " + string(change.Role),
			Fixed:    fix && change.Action != models.RoleSyncUnknownRole,
		})
	}
	if fix {
		report.RoleSync = sync
		recordAudit(ctx, s.audit, s.logger, actorAudit(actor, models.AuditActionIntegrityFix, "system", "", map[string]int{
			"fees_repaired": report.FeesRepaired,
			"issues":        len(report.Issues),
		}))
	}
	return report, nil
}
