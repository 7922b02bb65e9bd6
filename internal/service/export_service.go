package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/dto"
	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/export"
	"github.com/noah-isme/sims-api/pkg/storage"
)

// Export kinds.
const (
	ExportRankList        = "rank_list"
	ExportReportCard      = "report_card"
	ExportFeeReceipt      = "fee_receipt"
	ExportAttendanceSheet = "attendance_sheet"
)

type rankListSource interface {
	RankList(ctx context.Context, id string) (*models.RankList, error)
}

type reportCardSource interface {
	ReportCard(ctx context.Context, examID, studentID string, includeUnpublished bool) (*models.ReportCard, error)
}

type receiptSource interface {
	Receipt(ctx context.Context, paymentID string) (*models.Receipt, error)
}

type attendanceSheetReader interface {
	ListForSheet(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceDetail, error)
}

type studentGuard interface {
	RequireStudent(ctx context.Context, actor models.Actor, studentID string) error
}

type exportObserver interface {
	ObserveExport(kind, format string)
}

type urlSigner interface {
	Generate(exportID, key string) (string, time.Time, error)
	Parse(token string) (exportID, key string, err error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	BaseURL   string
	RetainFor time.Duration
}

// ExportDownload is a resolved signed download.
type ExportDownload struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
}

// AttendanceSheetRequest selects the class and period of an attendance sheet.
type AttendanceSheetRequest struct {
	ClassID  string `form:"class_id" validate:"required,uuid"`
	DateFrom string `form:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo   string `form:"date_to" validate:"required,datetime=2006-01-02"`
	Format   string `form:"format"`
}

// ExportService renders documents, stores them and hands out signed download URLs.
type ExportService struct {
	ranks      rankListSource
	cards      reportCardSource
	receipts   receiptSource
	attendance attendanceSheetReader
	classes    classLookup
	guard      studentGuard
	store      storage.Store
	signer     urlSigner
	metrics    exportObserver
	logger     *zap.Logger
	cfg        ExportConfig
	now        func() time.Time
}

// ExportServiceParams groups the export collaborators.
type ExportServiceParams struct {
	Ranks      rankListSource
	Cards      reportCardSource
	Receipts   receiptSource
	Attendance attendanceSheetReader
	Classes    classLookup
	Guard      studentGuard
	Store      storage.Store
	Signer     urlSigner
	Metrics    exportObserver
	Logger     *zap.Logger
	Config     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(p ExportServiceParams) *ExportService {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Config.RetainFor <= 0 {
		p.Config.RetainFor = 72 * time.Hour
	}
	return &ExportService{
		ranks:      p.Ranks,
		cards:      p.Cards,
		receipts:   p.Receipts,
		attendance: p.Attendance,
		classes:    p.Classes,
		guard:      p.Guard,
		store:      p.Store,
		signer:     p.Signer,
		metrics:    p.Metrics,
		logger:     p.Logger,
		cfg:        p.Config,
		now:        time.Now,
	}
}

// RankList exports an exam's rank list as csv, pdf or xlsx.
func (s *ExportService) RankList(ctx context.Context, examID, rawFormat string) (*dto.ExportResponse, error) {
	format, err := parseExportFormat(rawFormat, export.FormatCSV, export.FormatPDF, export.FormatXLSX)
	if err != nil {
		return nil, err
	}
	list, err := s.ranks.RankList(ctx, examID)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]string, 0, len(list.Entries))
	for _, entry := range list.Entries {
		rows = append(rows, map[string]string{
			"Rank":         fmt.Sprintf("%d", entry.Rank),
			"Admission No": entry.AdmissionNo,
			"Student":      entry.StudentName,
			"Total":        formatAmount(entry.TotalMarks),
			"Full Marks":   formatAmount(entry.TotalFullMark),
			"Percentage":   formatAmount(entry.Percentage),
			"Grade":        entry.Grade,
			"Failed":       fmt.Sprintf("%d", entry.FailedCount),
		})
	}
	status := "Unpublished"
	if list.Exam.IsResultPublished {
		status = "Published"
	}
	data := export.Dataset{
		Title: "Rank list",
		Summary: []export.KeyValue{
			{Key: "Exam", Value: list.Exam.Name},
			{Key: "Class", Value: list.Exam.ClassName},
			{Key: "Academic year", Value: list.Exam.AcademicYear},
			{Key: "Results", Value: status},
		},
		Headers: []string{"Rank", "Admission No", "Student", "Total", "Full Marks", "Percentage", "Grade", "Failed"},
		Rows:    rows,
	}
	return s.publish(ctx, ExportRankList, list.Exam.Name, format, data)
}

// ReportCard exports one student's report card as a PDF. Non-staff actors only reach published
// exams of students in their scope.
func (s *ExportService) ReportCard(ctx context.Context, actor models.Actor, examID, studentID string) (*dto.ExportResponse, error) {
	staff := actor.Role.IsAdmin() || actor.Role == models.RoleTeacher
	if !staff {
		if err := s.guard.RequireStudent(ctx, actor, studentID); err != nil {
			return nil, err
		}
	}
	card, err := s.cards.ReportCard(ctx, examID, studentID, staff)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]string, 0, len(card.Results))
	for _, r := range card.Results {
		passed := "No"
		if r.IsPassed {
			passed = "Yes"
		}
		rows = append(rows, map[string]string{
			"Subject":    r.SubjectName,
			"Marks":      formatAmount(r.MarksObtained),
			"Full Mark":  formatAmount(r.FullMark),
			"Percentage": formatAmount(r.Percentage),
			"Grade":      r.Grade,
			"GPA":        formatAmount(r.GPAPoint),
			"Passed":     passed,
		})
	}
	summary := []export.KeyValue{
		{Key: "Student", Value: card.Student.FullName},
		{Key: "Admission No", Value: card.Student.AdmissionNo},
		{Key: "Exam", Value: card.Exam.Name},
		{Key: "Class", Value: card.Exam.ClassName},
		{Key: "Total", Value: formatAmount(card.TotalMarks) + " / " + formatAmount(card.TotalFullMark)},
		{Key: "Percentage", Value: formatAmount(card.Percentage)},
		{Key: "Grade", Value: card.Grade},
		{Key: "GPA", Value: formatAmount(card.GPA)},
	}
	if card.Rank > 0 {
		summary = append(summary, export.KeyValue{Key: "Rank", Value: fmt.Sprintf("%d", card.Rank)})
	}
	data := export.Dataset{
		Title:   "Report card",
		Summary: summary,
		Headers: []string{"Subject", "Marks", "Full Mark", "Percentage", "Grade", "GPA", "Passed"},
		Rows:    rows,
	}
	return s.publish(ctx, ExportReportCard, card.Student.AdmissionNo+"_"+card.Exam.Name, export.FormatPDF, data)
}

// FeeReceipt exports the receipt of one payment as a PDF.
func (s *ExportService) FeeReceipt(ctx context.Context, actor models.Actor, paymentID string) (*dto.ExportResponse, error) {
	receipt, err := s.receipts.Receipt(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent || actor.Role == models.RoleGuardian {
		if err := s.guard.RequireStudent(ctx, actor, receipt.Fee.StudentID); err != nil {
			return nil, err
		}
	}
	payment := receipt.Payment
	reference := ""
	if payment.Reference != nil {
		reference = *payment.Reference
	}
	data := export.Dataset{
		Title: "Fee receipt",
		Summary: []export.KeyValue{
			{Key: "Receipt No", Value: payment.ID},
			{Key: "Student", Value: receipt.Fee.StudentName},
			{Key: "Admission No", Value: receipt.Fee.AdmissionNo},
			{Key: "Paid at", Value: payment.PaidAt.UTC().Format(dateLayout)},
		},
		Headers: []string{"Fee", "Amount", "Waived", "Paid", "Method", "Reference", "Balance"},
		Rows: []map[string]string{{
			"Fee":       receipt.Fee.FeeType,
			"Amount":    formatAmount(receipt.Fee.Amount),
			"Waived":    formatAmount(receipt.Fee.WaivedAmount),
			"Paid":      formatAmount(payment.Amount),
			"Method":    payment.Method,
			"Reference": reference,
			"Balance":   formatAmount(receipt.Fee.Fee.PendingAmount()),
		}},
		Footer: "Status: " + string(receipt.Fee.Status),
	}
	return s.publish(ctx, ExportFeeReceipt, receipt.Fee.AdmissionNo, export.FormatPDF, data)
}

// AttendanceSheet exports a class roll for a date range as csv or xlsx.
func (s *ExportService) AttendanceSheet(ctx context.Context, req AttendanceSheetRequest) (*dto.ExportResponse, error) {
	format, err := parseExportFormat(req.Format, export.FormatCSV, export.FormatXLSX)
	if err != nil {
		return nil, err
	}
	from, err := parseDate(req.DateFrom)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(req.DateTo)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_to must not be before date_from")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		return nil, lookupError(err, "class")
	}
	records, err := s.attendance.ListForSheet(ctx, req.ClassID, from, to)
	if err != nil {
		return nil, internalError(err, "failed to load attendance")
	}

	rows := make([]map[string]string, 0, len(records))
	var summary models.AttendanceSummary
	for _, rec := range records {
		remarks := ""
		if rec.Remarks != nil {
			remarks = *rec.Remarks
		}
		rows = append(rows, map[string]string{
			"Date":         rec.Date.UTC().Format(dateLayout),
			"Admission No": rec.AdmissionNo,
			"Student":      rec.StudentName,
			"Status":       string(rec.Status),
			"Remarks":      remarks,
		})
		summary.Total++
		switch rec.Status {
		case models.AttendancePresent:
			summary.Present++
		case models.AttendanceAbsent:
			summary.Absent++
		case models.AttendanceLate:
			summary.Late++
		case models.AttendanceExcused:
			summary.Excused++
		}
	}
	summary = summary.WithRate()
	data := export.Dataset{
		Title: "Attendance sheet",
		Summary: []export.KeyValue{
			{Key: "Class", Value: class.Name + " " + class.Section},
			{Key: "Period", Value: req.DateFrom + " to " + req.DateTo},
			{Key: "Attendance rate", Value: formatAmount(summary.Rate) + "%"},
		},
		Headers: []string{"Date", "Admission No", "Student", "Status", "Remarks"},
		Rows:    rows,
	}
	return s.publish(ctx, ExportAttendanceSheet, class.Name+"_"+req.DateFrom, format, data)
}

// Resolve validates a download token and opens the stored file.
func (s *ExportService) Resolve(ctx context.Context, token string) (*ExportDownload, error) {
	_, key, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	body, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, internalError(err, "failed to open export")
	}
	filename := path.Base(key)
	return &ExportDownload{Body: body, Filename: filename, ContentType: contentTypeFor(filename)}, nil
}

// Cleanup removes exports older than the retention window.
func (s *ExportService) Cleanup(ctx context.Context) ([]string, error) {
	removed, err := s.store.CleanupOlderThan(ctx, s.cfg.RetainFor)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Info("stale exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

func (s *ExportService) publish(ctx context.Context, kind, label string, format export.Format, data export.Dataset) (*dto.ExportResponse, error) {
	renderer, err := export.NewRenderer(format)
	if err != nil {
		return nil, validationError(err, "unsupported export format")
	}
	payload, err := renderer.Render(data)
	if err != nil {
		return nil, internalError(err, "failed to render export")
	}

	id := uuid.NewString()
	filename := fmt.Sprintf("%s_%s_%s.%s", kind, sanitizeFilename(label), s.now().UTC().Format("20060102_150405"), renderer.Extension())
	key := path.Join("exports", id, filename)
	if err := s.store.Save(ctx, key, payload, renderer.ContentType()); err != nil {
		return nil, internalError(err, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(id, key)
	if err != nil {
		return nil, internalError(err, "failed to sign export url")
	}
	if s.metrics != nil {
		s.metrics.ObserveExport(kind, string(format))
	}
	s.logger.Info("export generated", zap.String("kind", kind), zap.String("format", string(format)), zap.Int("bytes", len(payload)))
	return &dto.ExportResponse{
		ID:          id,
		Kind:        kind,
		Format:      string(format),
		Filename:    filename,
		DownloadURL: s.cfg.BaseURL + "/api/v1/exports/download/" + token,
		ExpiresAt:   expiresAt,
	}, nil
}

func parseExportFormat(raw string, allowed ...export.Format) (export.Format, error) {
	format := export.Format(strings.ToLower(strings.TrimSpace(raw)))
	if format == "" {
		return allowed[0], nil
	}
	for _, f := range allowed {
		if f == format {
			return f, nil
		}
	}
	names := make([]string, len(allowed))
	for i, f := range allowed {
		names[i] = string(f)
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "format must be one of "+strings.Join(names, ", "))
}

func contentTypeFor(filename string) string {
	switch path.Ext(filename) {
	case ".csv":
		return export.NewCSVExporter().ContentType()
	case ".pdf":
		return export.NewPDFExporter().ContentType()
	case ".xlsx":
		return export.NewXLSXExporter().ContentType()
	}
	return "application/octet-stream"
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
