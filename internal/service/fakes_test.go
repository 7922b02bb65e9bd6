package service

import (
	"context"
	"database/sql"

	"github.com/noah-isme/sims-api/internal/models"
)

type fakeClassLookup map[string]models.ClassDetail

func (f fakeClassLookup) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	if class, ok := f[id]; ok {
		return &class, nil
	}
	return nil, sql.ErrNoRows
}

type fakeAttendanceSummary struct {
	summary    models.AttendanceSummary
	lastFilter models.AttendanceFilter
}

func (f *fakeAttendanceSummary) Summary(ctx context.Context, filter models.AttendanceFilter) (models.AttendanceSummary, error) {
	f.lastFilter = filter
	return f.summary.WithRate(), nil
}

type fakePendingFees map[string]float64

func (f fakePendingFees) PendingTotal(ctx context.Context, studentIDs []string) (float64, error) {
	var total float64
	if len(studentIDs) == 0 {
		for _, v := range f {
			total += v
		}
		return models.Round2(total), nil
	}
	for _, id := range studentIDs {
		total += f[id]
	}
	return models.Round2(total), nil
}

type fakeGuardianLinks map[string][]models.GuardianLink

func (f fakeGuardianLinks) ListGuardians(ctx context.Context, studentID string) ([]models.GuardianLink, error) {
	return f[studentID], nil
}

type fakePublishedResults map[string][]models.ResultDetail

func (f fakePublishedResults) LatestPublished(ctx context.Context, studentID string, limit int) ([]models.ResultDetail, error) {
	results := f[studentID]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}
