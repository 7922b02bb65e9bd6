package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/events"
)

type noticeRepository interface {
	List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error)
	FindByID(ctx context.Context, id string) (*models.Notice, error)
	Create(ctx context.Context, notice *models.Notice) error
	Update(ctx context.Context, notice *models.Notice) error
	Delete(ctx context.Context, id string) error
}

// NoticeRequest is the payload for notices. PublishedAt defaults to now.
type NoticeRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Body        string     `json:"body" validate:"required"`
	Audience    string     `json:"audience" validate:"required,oneof=all students teachers guardians staff class"`
	ClassID     string     `json:"class_id" validate:"required_if=Audience class,omitempty,uuid"`
	Pinned      bool       `json:"pinned"`
	PublishedAt *time.Time `json:"published_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// NoticeService manages the notice board.
type NoticeService struct {
	repo      noticeRepository
	classes   classLookup
	scopes    scopeResolver
	audit     auditLogger
	bus       eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewNoticeService constructs NoticeService.
func NewNoticeService(repo noticeRepository, classes classLookup, scopes scopeResolver, audit auditLogger, bus eventPublisher, validate *validator.Validate, logger *zap.Logger) *NoticeService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoticeService{
		repo:      repo,
		classes:   classes,
		scopes:    scopes,
		audit:     audit,
		bus:       bus,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns every notice, including scheduled and expired ones.
func (s *NoticeService) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list notices")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Feed returns the active notices addressed to actor. Admins see every active notice.
func (s *NoticeService) Feed(ctx context.Context, actor models.Actor, filter models.NoticeFilter) ([]models.Notice, *models.Pagination, error) {
	now := s.now().UTC()
	filter.ActiveAt = &now
	filter.Audiences = nil
	filter.ClassIDs = nil
	if !actor.Role.IsAdmin() {
		filter.Audiences = models.AudiencesFor(actor.Role)
		if len(filter.Audiences) == 0 {
			return []models.Notice{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
		}
		if s.scopes != nil {
			scope, err := s.scopes.Resolve(ctx, actor)
			if err != nil {
				return nil, nil, err
			}
			filter.ClassIDs = scope.ClassIDs
		}
		if filter.ClassIDs == nil {
			filter.ClassIDs = []string{}
		}
	}
	return s.List(ctx, filter)
}

func (s *NoticeService) Get(ctx context.Context, id string) (*models.Notice, error) {
	notice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "notice")
	}
	return notice, nil
}

// Create stores a notice and announces it on the event bus.
func (s *NoticeService) Create(ctx context.Context, req NoticeRequest, actor models.Actor) (*models.Notice, error) {
	notice := &models.Notice{CreatedBy: strPtr(actor.UserID)}
	if err := s.apply(ctx, notice, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, notice); err != nil {
		return nil, internalError(err, "failed to create notice")
	}
	recordAudit(ctx, s.audit, s.logger, actorAudit(actor, models.AuditActionNoticePublish, "notice", notice.ID, notice))
	event := events.NoticePublished{NoticeID: notice.ID, Title: notice.Title, Audience: notice.Audience}
	if notice.ClassID != nil {
		event.ClassID = *notice.ClassID
	}
	publishEvent(ctx, s.bus, s.logger, events.TopicNoticePublished, event)
	return notice, nil
}

func (s *NoticeService) Update(ctx context.Context, id string, req NoticeRequest) (*models.Notice, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	notice := *existing
	if req.PublishedAt == nil {
		published := existing.PublishedAt
		req.PublishedAt = &published
	}
	if err := s.apply(ctx, &notice, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &notice); err != nil {
		return nil, internalError(err, "failed to update notice")
	}
	return s.Get(ctx, id)
}

func (s *NoticeService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete notice")
	}
	return nil
}

func (s *NoticeService) apply(ctx context.Context, notice *models.Notice, req NoticeRequest) error {
	req.Audience = strings.ToLower(strings.TrimSpace(req.Audience))
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid notice payload")
	}
	published := s.now().UTC()
	if req.PublishedAt != nil {
		published = req.PublishedAt.UTC()
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(published) {
		return appErrors.Clone(appErrors.ErrValidation, "expires_at must be after published_at")
	}
	notice.ClassID = nil
	if req.Audience == models.AudienceClass {
		if s.classes != nil {
			if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
				if isNotFound(err) {
					return appErrors.Clone(appErrors.ErrValidation, "class does not exist")
				}
				return internalError(err, "failed to validate class")
			}
		}
		notice.ClassID = strPtr(req.ClassID)
	}
	notice.Title = strings.TrimSpace(req.Title)
	notice.Body = req.Body
	notice.Audience = req.Audience
	notice.Pinned = req.Pinned
	notice.PublishedAt = published
	notice.ExpiresAt = nil
	if req.ExpiresAt != nil {
		expires := req.ExpiresAt.UTC()
		notice.ExpiresAt = &expires
	}
	return nil
}
