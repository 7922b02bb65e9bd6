package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type resultRepository interface {
	List(ctx context.Context, filter models.ResultFilter) ([]models.ResultDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ResultDetail, error)
	ListByStudentExam(ctx context.Context, studentID, examID string) ([]models.ResultDetail, error)
	BulkUpsert(ctx context.Context, examID string, results []models.Result) error
	Update(ctx context.Context, result *models.Result) error
	Delete(ctx context.Context, id string) error
}

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.ExamDetail, error)
	StudentTotals(ctx context.Context, examID string) ([]models.StudentTotal, error)
}

type classSubjectReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.Subject, error)
}

type classRosterReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ListActiveByClass(ctx context.Context, classID string) ([]models.StudentDetail, error)
}

// BulkResultRequest carries the marks of one exam.
type BulkResultRequest struct {
	Entries []models.MarkEntry `json:"entries" validate:"required,min=1,max=2000,dive"`
}

// ResultUpdateRequest rewrites the marks of a single result.
type ResultUpdateRequest struct {
	Marks   float64 `json:"marks" validate:"gte=0"`
	Remarks string  `json:"remarks" validate:"omitempty,max=255"`
}

// EntryError explains why one line of a bulk entry was rejected.
type EntryError struct {
	Index     int    `json:"index"`
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
	Reason    string `json:"reason"`
}

// ResultService handles mark entry and report cards.
type ResultService struct {
	repo      resultRepository
	exams     examReader
	subjects  classSubjectReader
	students  classRosterReader
	bands     gradingBandReader
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewResultService constructs ResultService.
func NewResultService(repo resultRepository, exams examReader, subjects classSubjectReader, students classRosterReader, bands gradingBandReader, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *ResultService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{
		repo:      repo,
		exams:     exams,
		subjects:  subjects,
		students:  students,
		bands:     bands,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns results with pagination.
func (s *ResultService) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultDetail, *models.Pagination, error) {
	results, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list results")
	}
	return results, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one result.
func (s *ResultService) Get(ctx context.Context, id string) (*models.ResultDetail, error) {
	result, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "result")
	}
	return result, nil
}

// BulkEntry grades and stores marks for one exam in a single transaction.
// Every line is checked before anything is written; one bad line rejects the batch.
func (s *ResultService) BulkEntry(ctx context.Context, examID string, req BulkResultRequest, actor models.Actor) ([]models.Result, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk result payload")
	}
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		return nil, lookupError(err, "exam")
	}
	if exam.IsResultPublished {
		return nil, appErrors.ErrPublished
	}
	if !exam.Completed(s.now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "marks can only be entered after the exam ends")
	}

	subjectList, err := s.subjects.ListByClass(ctx, exam.ClassID)
	if err != nil {
		return nil, internalError(err, "failed to load class subjects")
	}
	subjects := make(map[string]models.Subject, len(subjectList))
	for _, sub := range subjectList {
		subjects[sub.ID] = sub
	}
	roster, err := s.students.ListActiveByClass(ctx, exam.ClassID)
	if err != nil {
		return nil, internalError(err, "failed to load class students")
	}
	enrolled := make(map[string]struct{}, len(roster))
	for _, st := range roster {
		enrolled[st.ID] = struct{}{}
	}
	bands, err := s.bands.List(ctx, true)
	if err != nil {
		return nil, internalError(err, "failed to load grading scale")
	}

	results := make([]models.Result, 0, len(req.Entries))
	seen := make(map[string]int, len(req.Entries))
	var rejected []EntryError
	for i, entry := range req.Entries {
		reject := func(reason string) {
			rejected = append(rejected, EntryError{Index: i, StudentID: entry.StudentID, SubjectID: entry.SubjectID, Reason: reason})
		}
		key := entry.StudentID + "/" + entry.SubjectID
		if first, dup := seen[key]; dup {
			reject(fmt.Sprintf("duplicate of entry %d", first))
			continue
		}
		seen[key] = i
		subject, ok := subjects[entry.SubjectID]
		if !ok {
			reject("subject is not taught in the exam's class")
			continue
		}
		if _, ok := enrolled[entry.StudentID]; !ok {
			reject("student is not an active member of the exam's class")
			continue
		}
		outcome, err := ResolveGrade(entry.Marks, subject.FullMark, subject.PassMark, bands)
		if err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) && appErr.Code == appErrors.ErrPreconditionFailed.Code {
				return nil, appErr
			}
			reject(fmt.Sprintf("marks must be between 0 and %.2f", subject.FullMark))
			continue
		}
		results = append(results, models.Result{
			StudentID:     entry.StudentID,
			ExamID:        examID,
			SubjectID:     entry.SubjectID,
			MarksObtained: entry.Marks,
			Percentage:    outcome.Percentage,
			Grade:         outcome.Grade,
			GPAPoint:      outcome.GPAPoint,
			IsPassed:      outcome.IsPassed,
			Remarks:       strPtr(entry.Remarks),
			EnteredBy:     strPtr(actor.UserID),
		})
	}
	if len(rejected) > 0 {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "some entries were rejected"), map[string]interface{}{"rejected": rejected})
	}

	if err := s.repo.BulkUpsert(ctx, examID, results); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, appErrors.ErrPublished
		}
		return nil, internalError(err, "failed to store results")
	}
	recordAudit(ctx, s.audit, s.logger, actorAudit(actor, models.AuditActionMarksEntry, "exam", examID, map[string]int{"entries": len(results)}))
	s.logger.Info("marks entered", zap.String("exam_id", examID), zap.Int("entries", len(results)))
	return results, nil
}

// Update regrades a single result while its exam is unpublished.
func (s *ResultService) Update(ctx context.Context, id string, req ResultUpdateRequest, actor models.Actor) (*models.ResultDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid result payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail.Published {
		return nil, publishedLock()
	}
	bands, err := s.bands.List(ctx, true)
	if err != nil {
		return nil, internalError(err, "failed to load grading scale")
	}
	outcome, err := ResolveGrade(req.Marks, detail.FullMark, detail.PassMark, bands)
	if err != nil {
		return nil, err
	}
	result := detail.Result
	result.MarksObtained = req.Marks
	result.Percentage = outcome.Percentage
	result.Grade = outcome.Grade
	result.GPAPoint = outcome.GPAPoint
	result.IsPassed = outcome.IsPassed
	result.Remarks = strPtr(req.Remarks)
	result.EnteredBy = strPtr(actor.UserID)
	if err := s.repo.Update(ctx, &result); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, publishedLock()
		}
		return nil, internalError(err, "failed to update result")
	}
	return s.Get(ctx, id)
}

// Delete removes a result while its exam is unpublished.
func (s *ResultService) Delete(ctx context.Context, id string) error {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if detail.Published {
		return publishedLock()
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return publishedLock()
		}
		return internalError(err, "failed to delete result")
	}
	return nil
}

// ReportCard assembles one student's results for an exam with the overall grade and rank.
// Callers without staff rights only see published exams.
func (s *ResultService) ReportCard(ctx context.Context, examID, studentID string, includeUnpublished bool) (*models.ReportCard, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		return nil, lookupError(err, "exam")
	}
	if !exam.IsResultPublished && !includeUnpublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "results are not published yet")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, lookupError(err, "student")
	}
	results, err := s.repo.ListByStudentExam(ctx, studentID, examID)
	if err != nil {
		return nil, internalError(err, "failed to load results")
	}
	if len(results) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no results for this student")
	}

	card := &models.ReportCard{Exam: *exam, Student: *student, Results: results, Passed: true}
	var gpaSum float64
	for _, r := range results {
		card.TotalMarks += r.MarksObtained
		card.TotalFullMark += r.FullMark
		gpaSum += r.GPAPoint
		if !r.IsPassed {
			card.Passed = false
		}
	}
	card.TotalMarks = models.Round2(card.TotalMarks)
	card.Percentage = models.Percent(card.TotalMarks, card.TotalFullMark)
	card.GPA = models.Round2(gpaSum / float64(len(results)))

	totals, err := s.exams.StudentTotals(ctx, examID)
	if err != nil {
		return nil, internalError(err, "failed to aggregate exam results")
	}
	bands, err := s.bands.List(ctx, true)
	if err != nil {
		return nil, internalError(err, "failed to load grading scale")
	}
	for _, entry := range rankTotals(totals, bands) {
		if entry.StudentID == studentID {
			card.Rank = entry.Rank
			card.Grade = entry.Grade
			return card, nil
		}
	}
	// Students no longer active in the class keep a grade but no rank.
	if sorted := sortBandsDesc(bands); len(sorted) > 0 {
		card.Grade = lookupBand(sorted, card.Percentage, card.Passed).Grade
	}
	return card, nil
}

func publishedLock() *appErrors.Error {
	return appErrors.Clone(appErrors.ErrPreconditionFailed, "exam results are published and locked")
}
