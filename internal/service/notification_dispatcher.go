package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/pkg/events"
	"github.com/noah-isme/sims-api/pkg/jobs"
	"github.com/noah-isme/sims-api/pkg/notify"
)

// Notification types stored on in-app notifications.
const (
	NotificationResultsPublished = "results_published"
	NotificationNoticePublished  = "notice_published"
	NotificationPaymentReceived  = "payment_received"
	NotificationWaiverDecided    = "waiver_decided"
	NotificationLessonReviewed   = "lesson_plan_reviewed"
)

// DeliveryJobType identifies email and SMS delivery jobs on the queue.
const DeliveryJobType = "notification.delivery"

// Delivery channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Delivery is the payload of a queued out-of-band message.
type Delivery struct {
	Channel string
	To      string
	ToName  string
	Subject string
	Body    string
}

type recipientDirectory interface {
	UsersByIDs(ctx context.Context, userIDs []string) ([]models.Recipient, error)
	StudentAndGuardianUsers(ctx context.Context, studentIDs []string) ([]models.Recipient, error)
	ClassUsers(ctx context.Context, classID string) ([]models.Recipient, error)
	RoleUsers(ctx context.Context, roles []string) ([]models.Recipient, error)
}

type notificationWriter interface {
	CreateBatch(ctx context.Context, items []models.Notification) error
}

type eventSubscriber interface {
	Handle(name, topic string, fn events.HandlerFunc)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// outbound describes one event's message before fan-out.
type outbound struct {
	kind  string
	title string
	body  string
	data  models.NotificationData
	email bool
	sms   bool
}

// NotificationDispatcher turns domain events into in-app notifications and queued email/SMS.
type NotificationDispatcher struct {
	directory recipientDirectory
	writer    notificationWriter
	teachers  teacherLookup
	queue     jobEnqueuer
	logger    *zap.Logger
}

// NewNotificationDispatcher constructs NotificationDispatcher. A nil queue disables email and SMS.
func NewNotificationDispatcher(directory recipientDirectory, writer notificationWriter, teachers teacherLookup, queue jobEnqueuer, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationDispatcher{
		directory: directory,
		writer:    writer,
		teachers:  teachers,
		queue:     queue,
		logger:    logger.Named("notifications"),
	}
}

// Register subscribes the dispatcher to every notifying topic.
func (d *NotificationDispatcher) Register(sub eventSubscriber) {
	sub.Handle("notify_results_published", events.TopicResultsPublished, d.OnResultsPublished)
	sub.Handle("notify_notice_published", events.TopicNoticePublished, d.OnNoticePublished)
	sub.Handle("notify_fee_payment", events.TopicFeePaymentRecorded, d.OnFeePaymentRecorded)
	sub.Handle("notify_waiver_decided", events.TopicWaiverDecided, d.OnWaiverDecided)
	sub.Handle("notify_lesson_plan_reviewed", events.TopicLessonPlanReviewed, d.OnLessonPlanReviewed)
}

func (d *NotificationDispatcher) OnResultsPublished(ctx context.Context, payload []byte) error {
	var event events.ResultsPublished
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode results published: %w", err)
	}
	recipients, err := d.directory.ClassUsers(ctx, event.ClassID)
	if err != nil {
		return err
	}
	return d.fanOut(ctx, recipients, outbound{
		kind:  NotificationResultsPublished,
		title: "Exam results published",
		body:  fmt.Sprintf("Results for %s are now available.", event.ExamName),
		data:  models.NotificationData{"exam_id": event.ExamID},
		email: true,
		sms:   true,
	})
}

func (d *NotificationDispatcher) OnNoticePublished(ctx context.Context, payload []byte) error {
	var event events.NoticePublished
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode notice published: %w", err)
	}
	var (
		recipients []models.Recipient
		err        error
	)
	if event.Audience == models.AudienceClass {
		recipients, err = d.directory.ClassUsers(ctx, event.ClassID)
	} else {
		recipients, err = d.directory.RoleUsers(ctx, rolesForAudience(event.Audience))
	}
	if err != nil {
		return err
	}
	return d.fanOut(ctx, recipients, outbound{
		kind:  NotificationNoticePublished,
		title: "New notice",
		body:  event.Title,
		data:  models.NotificationData{"notice_id": event.NoticeID},
	})
}

func (d *NotificationDispatcher) OnFeePaymentRecorded(ctx context.Context, payload []byte) error {
	var event events.FeePaymentRecorded
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode fee payment: %w", err)
	}
	recipients, err := d.directory.StudentAndGuardianUsers(ctx, []string{event.StudentID})
	if err != nil {
		return err
	}
	return d.fanOut(ctx, recipients, outbound{
		kind:  NotificationPaymentReceived,
		title: "Payment received",
		body:  fmt.Sprintf("We received a payment of %.2f. Remaining balance: %.2f.", event.Amount, event.Pending),
		data:  models.NotificationData{"fee_id": event.FeeID, "payment_id": event.PaymentID},
		email: true,
		sms:   true,
	})
}

func (d *NotificationDispatcher) OnWaiverDecided(ctx context.Context, payload []byte) error {
	var event events.WaiverDecided
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode waiver decision: %w", err)
	}
	recipients, err := d.directory.StudentAndGuardianUsers(ctx, []string{event.StudentID})
	if err != nil {
		return err
	}
	if event.RequestedBy != "" {
		requester, err := d.directory.UsersByIDs(ctx, []string{event.RequestedBy})
		if err != nil {
			return err
		}
		recipients = append(recipients, requester...)
	}
	return d.fanOut(ctx, recipients, outbound{
		kind:  NotificationWaiverDecided,
		title: "Fee waiver " + event.Status,
		body:  fmt.Sprintf("A waiver of %.2f was %s.", event.Amount, event.Status),
		data:  models.NotificationData{"fee_id": event.FeeID, "waiver_id": event.WaiverID},
		email: true,
	})
}

func (d *NotificationDispatcher) OnLessonPlanReviewed(ctx context.Context, payload []byte) error {
	var event events.LessonPlanReviewed
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode lesson plan review: %w", err)
	}
	teacher, err := d.teachers.FindByID(ctx, event.TeacherID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if teacher.UserID == nil {
		return nil
	}
	recipients, err := d.directory.UsersByIDs(ctx, []string{*teacher.UserID})
	if err != nil {
		return err
	}
	return d.fanOut(ctx, recipients, outbound{
		kind:  NotificationLessonReviewed,
		title: "Lesson plan " + event.Status,
		body:  fmt.Sprintf("Your lesson plan %q was %s.", event.Title, event.Status),
		data:  models.NotificationData{"lesson_plan_id": event.LessonPlanID},
	})
}

func (d *NotificationDispatcher) fanOut(ctx context.Context, recipients []models.Recipient, msg outbound) error {
	recipients = uniqueRecipients(recipients)
	if len(recipients) == 0 {
		return nil
	}
	items := make([]models.Notification, 0, len(recipients))
	for _, r := range recipients {
		items = append(items, models.Notification{UserID: r.UserID, Type: msg.kind, Title: msg.title, Body: msg.body, Data: msg.data})
	}
	if err := d.writer.CreateBatch(ctx, items); err != nil {
		return fmt.Errorf("store %s notifications: %w", msg.kind, err)
	}
	if d.queue == nil {
		return nil
	}
	for _, r := range recipients {
		if msg.email && r.Email != "" {
			d.enqueue(Delivery{Channel: ChannelEmail, To: r.Email, ToName: r.FullName, Subject: msg.title, Body: msg.body})
		}
		if msg.sms && r.Phone != nil && *r.Phone != "" {
			d.enqueue(Delivery{Channel: ChannelSMS, To: *r.Phone, ToName: r.FullName, Body: msg.title + ": " + msg.body})
		}
	}
	return nil
}

func (d *NotificationDispatcher) enqueue(delivery Delivery) {
	if err := d.queue.Enqueue(jobs.Job{Type: DeliveryJobType, Payload: delivery}); err != nil {
		d.logger.Warn("failed to queue delivery", zap.String("channel", delivery.Channel), zap.Error(err))
	}
}

func uniqueRecipients(in []models.Recipient) []models.Recipient {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.Recipient, 0, len(in))
	for _, r := range in {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r)
	}
	return out
}

func rolesForAudience(audience string) []string {
	var roles []models.UserRole
	switch audience {
	case models.AudienceStudents:
		roles = []models.UserRole{models.RoleStudent}
	case models.AudienceTeachers:
		roles = []models.UserRole{models.RoleTeacher}
	case models.AudienceGuardian:
		roles = []models.UserRole{models.RoleGuardian}
	case models.AudienceStaff:
		roles = []models.UserRole{models.RoleStaff, models.RoleAccountant, models.RoleTeacher}
	default:
		roles = models.AllRoles
	}
	out := make([]string, len(roles))
	for i, role := range roles {
		out[i] = string(role)
	}
	return out
}

type deliveryObserver interface {
	ObserveDelivery(channel, outcome string)
}

// DeliveryWorker sends queued deliveries through the configured channels.
type DeliveryWorker struct {
	email   notify.EmailSender
	sms     notify.SMSSender
	metrics deliveryObserver
	logger  *zap.Logger
}

// NewDeliveryWorker constructs DeliveryWorker. metrics may be nil.
func NewDeliveryWorker(email notify.EmailSender, sms notify.SMSSender, metrics deliveryObserver, logger *zap.Logger) *DeliveryWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryWorker{email: email, sms: sms, metrics: metrics, logger: logger}
}

// Handle implements jobs.Handler. Transport errors are retried by the queue; malformed deliveries are
// marked permanent.
func (w *DeliveryWorker) Handle(ctx context.Context, job jobs.Job) error {
	delivery, ok := job.Payload.(Delivery)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unexpected delivery payload %T", job.Payload))
	}
	if strings.TrimSpace(delivery.To) == "" {
		return jobs.Permanent(fmt.Errorf("%s delivery without recipient", delivery.Channel))
	}

	var err error
	switch delivery.Channel {
	case ChannelEmail:
		err = w.email.SendEmail(ctx, notify.EmailMessage{
			To:      delivery.To,
			ToName:  delivery.ToName,
			Subject: delivery.Subject,
			Text:    delivery.Body,
			HTML:    "<p>" + html.EscapeString(delivery.Body) + "</p>",
		})
	case ChannelSMS:
		err = w.sms.SendSMS(ctx, notify.SMSMessage{To: delivery.To, Body: delivery.Body})
	default:
		return jobs.Permanent(fmt.Errorf("unknown delivery channel %q", delivery.Channel))
	}
	if err != nil {
		return err
	}
	w.observe(delivery.Channel, "sent")
	return nil
}

// GivenUp records a delivery the queue abandoned. It matches jobs.QueueConfig.OnGiveUp.
func (w *DeliveryWorker) GivenUp(job jobs.Job, err error) {
	channel := "unknown"
	if delivery, ok := job.Payload.(Delivery); ok {
		channel = delivery.Channel
	}
	w.observe(channel, "abandoned")
}

func (w *DeliveryWorker) observe(channel, outcome string) {
	if w.metrics != nil {
		w.metrics.ObserveDelivery(channel, outcome)
	}
}
