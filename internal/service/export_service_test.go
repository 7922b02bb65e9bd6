package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/storage"
)

const sheetClassID = "6d2c3f1e-8a4b-4c3d-9e2f-1a2b3c4d5e6f"

type staticRanks struct{ list *models.RankList }

func (s staticRanks) RankList(ctx context.Context, id string) (*models.RankList, error) {
	if s.list == nil || s.list.Exam.ID != id {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}
	return s.list, nil
}

type recordingCards struct {
	includeUnpublished bool
}

func (r *recordingCards) ReportCard(ctx context.Context, examID, studentID string, includeUnpublished bool) (*models.ReportCard, error) {
	r.includeUnpublished = includeUnpublished
	return &models.ReportCard{
		Exam:       models.ExamDetail{Exam: models.Exam{ID: examID, Name: "Mid Term"}, ClassName: "7A"},
		Student:    models.StudentDetail{Student: models.Student{ID: studentID, FullName: "Aisha", AdmissionNo: "A-001"}},
		Results:    []models.ResultDetail{{Result: models.Result{MarksObtained: 45, Percentage: 90, Grade: "A", GPAPoint: 4, IsPassed: true}, SubjectName: "Math", FullMark: 50}},
		TotalMarks: 45, TotalFullMark: 50, Percentage: 90, Grade: "A", GPA: 4, Passed: true, Rank: 1,
	}, nil
}

type staticReceipts map[string]models.Receipt

func (s staticReceipts) Receipt(ctx context.Context, paymentID string) (*models.Receipt, error) {
	r, ok := s[paymentID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	return &r, nil
}

type staticSheet []models.AttendanceDetail

func (s staticSheet) ListForSheet(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceDetail, error) {
	return s, nil
}

func newExportFixture(t *testing.T) (*ExportService, *recordingCards) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	cards := &recordingCards{}
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	svc := NewExportService(ExportServiceParams{
		Ranks: staticRanks{list: &models.RankList{
			Exam: models.ExamDetail{Exam: models.Exam{ID: "exam-1", Name: "Mid Term", AcademicYear: "2024/2025"}, ClassName: "7A"},
			Entries: []models.RankEntry{
				{Rank: 1, StudentTotal: models.StudentTotal{StudentName: "Aisha", AdmissionNo: "A-001", TotalMarks: 90, TotalFullMark: 100}, Percentage: 90, Grade: "A"},
				{Rank: 1, StudentTotal: models.StudentTotal{StudentName: "Bilal", AdmissionNo: "A-002", TotalMarks: 90, TotalFullMark: 100}, Percentage: 90, Grade: "A"},
				{Rank: 3, StudentTotal: models.StudentTotal{StudentName: "Omar", AdmissionNo: "A-003", TotalMarks: 70, TotalFullMark: 100}, Percentage: 70, Grade: "B"},
			},
		}},
		Cards: cards,
		Receipts: staticReceipts{"pay-1": {
			Payment: models.FeePayment{ID: "pay-1", Amount: 40, Method: "cash", PaidAt: day},
			Fee:     models.FeeDetail{Fee: models.Fee{StudentID: "s2", FeeType: "tuition", Amount: 100, PaidAmount: 40, Status: models.FeePartial}, StudentName: "Bilal", AdmissionNo: "A-002"},
		}},
		Attendance: staticSheet{
			{Attendance: models.Attendance{Date: day, Status: models.AttendancePresent}, StudentName: "Aisha", AdmissionNo: "A-001"},
			{Attendance: models.Attendance{Date: day, Status: models.AttendanceAbsent}, StudentName: "Bilal", AdmissionNo: "A-002"},
		},
		Classes: fakeClassLookup{sheetClassID: {ClassRoom: models.ClassRoom{ID: sheetClassID, Name: "7", Section: "A"}}},
		Guard:   newTestResolver(),
		Store:   store,
		Signer:  storage.NewSignedURLSigner("secret", time.Hour),
		Config:  ExportConfig{BaseURL: "https://sims.example.com"},
	})
	svc.now = func() time.Time { return time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC) }
	return svc, cards
}

func downloadToken(t *testing.T, url string) string {
	t.Helper()
	const prefix = "https://sims.example.com/api/v1/exports/download/"
	require.True(t, strings.HasPrefix(url, prefix), url)
	return strings.TrimPrefix(url, prefix)
}

func readDownload(t *testing.T, svc *ExportService, url string) (*ExportDownload, []byte) {
	t.Helper()
	dl, err := svc.Resolve(context.Background(), downloadToken(t, url))
	require.NoError(t, err)
	defer dl.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	return dl, body
}

func TestExportRankListCSVRoundTrip(t *testing.T) {
	svc, _ := newExportFixture(t)

	resp, err := svc.RankList(context.Background(), "exam-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, ExportRankList, resp.Kind)
	assert.Equal(t, "rank_list_Mid_Term_20250304_080000.csv", resp.Filename)

	dl, body := readDownload(t, svc, resp.DownloadURL)
	assert.Equal(t, "text/csv", dl.ContentType)
	assert.Equal(t, resp.Filename, dl.Filename)
	assert.Contains(t, string(body), "1,A-002,Bilal,90.00,100.00,90.00,A,0\n3,A-003,Omar")
}

func TestExportRankListRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportFixture(t)
	_, err := svc.RankList(context.Background(), "exam-1", "docx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.RankList(context.Background(), "missing", "")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestExportReportCardScope(t *testing.T) {
	svc, cards := newExportFixture(t)
	ctx := context.Background()

	_, err := svc.ReportCard(ctx, models.Actor{UserID: "stu-user", Role: models.RoleStudent}, "exam-1", "s2")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	resp, err := svc.ReportCard(ctx, models.Actor{UserID: "stu-user", Role: models.RoleStudent}, "exam-1", "s1")
	require.NoError(t, err)
	assert.False(t, cards.includeUnpublished)
	assert.Equal(t, "pdf", resp.Format)
	_, body := readDownload(t, svc, resp.DownloadURL)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	_, err = svc.ReportCard(ctx, models.Actor{UserID: "t", Role: models.RoleTeacher}, "exam-1", "s2")
	require.NoError(t, err)
	assert.True(t, cards.includeUnpublished)
}

func TestExportFeeReceiptForGuardian(t *testing.T) {
	svc, _ := newExportFixture(t)
	resp, err := svc.FeeReceipt(context.Background(), models.Actor{UserID: "par-user", Role: models.RoleGuardian}, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, ExportFeeReceipt, resp.Kind)

	_, err = svc.FeeReceipt(context.Background(), models.Actor{UserID: "stu-user", Role: models.RoleStudent}, "pay-1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestExportAttendanceSheet(t *testing.T) {
	svc, _ := newExportFixture(t)
	ctx := context.Background()

	_, err := svc.AttendanceSheet(ctx, AttendanceSheetRequest{ClassID: sheetClassID, DateFrom: "2025-03-03", DateTo: "2025-03-03", Format: "pdf"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.AttendanceSheet(ctx, AttendanceSheetRequest{ClassID: sheetClassID, DateFrom: "2025-03-05", DateTo: "2025-03-03"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	resp, err := svc.AttendanceSheet(ctx, AttendanceSheetRequest{ClassID: sheetClassID, DateFrom: "2025-03-03", DateTo: "2025-03-03"})
	require.NoError(t, err)
	_, body := readDownload(t, svc, resp.DownloadURL)
	assert.Contains(t, string(body), "Attendance rate,50.00%")
	assert.Contains(t, string(body), "2025-03-03,A-002,Bilal,absent,")
}

func TestExportResolveRejectsTamperedToken(t *testing.T) {
	svc, _ := newExportFixture(t)
	resp, err := svc.RankList(context.Background(), "exam-1", "csv")
	require.NoError(t, err)

	token := downloadToken(t, resp.DownloadURL)
	_, err = svc.Resolve(context.Background(), token+"00")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestExportCleanupRemovesOldFiles(t *testing.T) {
	svc, _ := newExportFixture(t)
	resp, err := svc.RankList(context.Background(), "exam-1", "csv")
	require.NoError(t, err)

	svc.cfg.RetainFor = time.Hour
	removed, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Empty(t, removed)

	svc.cfg.RetainFor = time.Nanosecond
	time.Sleep(5 * time.Millisecond)
	removed, err = svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Len(t, removed, 1)

	_, err = svc.Resolve(context.Background(), downloadToken(t, resp.DownloadURL))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
