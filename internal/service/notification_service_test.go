package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/events"
	"github.com/noah-isme/sims-api/pkg/jobs"
	"github.com/noah-isme/sims-api/pkg/notify"
)

type memNotificationRepo struct {
	items      []models.Notification
	lastFilter models.NotificationFilter
}

func (m *memNotificationRepo) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	m.lastFilter = filter
	var out []models.Notification
	for _, n := range m.items {
		if n.UserID == filter.UserID && (!filter.UnreadOnly || n.ReadAt == nil) {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (m *memNotificationRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, n := range m.items {
		if n.UserID == userID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *memNotificationRepo) MarkRead(ctx context.Context, userID, id string) error {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			now := ledgerNow
			m.items[i].ReadAt = &now
			return nil
		}
	}
	return repository.ErrStaleWrite
}

func (m *memNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	var n int64
	for i := range m.items {
		if m.items[i].UserID == userID && m.items[i].ReadAt == nil {
			now := ledgerNow
			m.items[i].ReadAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memNotificationRepo) CreateBatch(ctx context.Context, items []models.Notification) error {
	m.items = append(m.items, items...)
	return nil
}

func TestNotificationInbox(t *testing.T) {
	repo := &memNotificationRepo{items: []models.Notification{
		{ID: "n1", UserID: "u1"},
		{ID: "n2", UserID: "u1"},
		{ID: "n3", UserID: "u2"},
	}}
	svc := NewNotificationService(repo, nil)
	ctx := context.Background()

	items, page, err := svc.List(ctx, "u1", models.NotificationFilter{UserID: "u2", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "u1", repo.lastFilter.UserID)
	assert.Equal(t, 2, page.TotalCount)

	require.NoError(t, svc.MarkRead(ctx, "u1", "n1"))
	err = svc.MarkRead(ctx, "u1", "n3")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	updated, err := svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)
}

type fakeDirectory struct {
	users      map[string]models.Recipient
	byStudent  map[string][]models.Recipient
	byClass    map[string][]models.Recipient
	lastRoles  []string
	roleResult []models.Recipient
}

func (f *fakeDirectory) UsersByIDs(ctx context.Context, userIDs []string) ([]models.Recipient, error) {
	var out []models.Recipient
	for _, id := range userIDs {
		if r, ok := f.users[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDirectory) StudentAndGuardianUsers(ctx context.Context, studentIDs []string) ([]models.Recipient, error) {
	var out []models.Recipient
	for _, id := range studentIDs {
		out = append(out, f.byStudent[id]...)
	}
	return out, nil
}

func (f *fakeDirectory) ClassUsers(ctx context.Context, classID string) ([]models.Recipient, error) {
	return f.byClass[classID], nil
}

func (f *fakeDirectory) RoleUsers(ctx context.Context, roles []string) ([]models.Recipient, error) {
	f.lastRoles = roles
	return f.roleResult, nil
}

type captureQueue struct {
	jobs []jobs.Job
}

func (q *captureQueue) Enqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type subscription struct {
	name, topic string
}

type recordingSubscriber struct {
	subs []subscription
}

func (r *recordingSubscriber) Handle(name, topic string, fn events.HandlerFunc) {
	r.subs = append(r.subs, subscription{name: name, topic: topic})
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func newDispatcherFixture() (*NotificationDispatcher, *fakeDirectory, *memNotificationRepo, *captureQueue) {
	phone := "+628123"
	student := models.Recipient{UserID: "stu-user", FullName: "Aisyah", Email: "aisyah@example.com"}
	parent := models.Recipient{UserID: "par-user", FullName: "Fatimah", Email: "fatimah@example.com", Phone: &phone}
	directory := &fakeDirectory{
		users:     map[string]models.Recipient{"acc-user": {UserID: "acc-user", Email: "acc@example.com"}, "teacher-user": {UserID: "teacher-user"}},
		byStudent: map[string][]models.Recipient{studentOneID: {student, parent}},
		byClass:   map[string][]models.Recipient{classSevenID: {student, parent, parent}},
	}
	teacherUser := "teacher-user"
	teachers := fakeTeacherLookup{teacherOneID: {Teacher: models.Teacher{ID: teacherOneID, UserID: &teacherUser}}}
	repo := &memNotificationRepo{}
	queue := &captureQueue{}
	return NewNotificationDispatcher(directory, repo, teachers, queue, nil), directory, repo, queue
}

func TestDispatcherRegistersTopics(t *testing.T) {
	dispatcher, _, _, _ := newDispatcherFixture()
	sub := &recordingSubscriber{}
	dispatcher.Register(sub)
	require.Len(t, sub.subs, 5)
	assert.Equal(t, events.TopicResultsPublished, sub.subs[0].topic)
	assert.Equal(t, events.TopicLessonPlanReviewed, sub.subs[4].topic)
}

func TestDispatcherResultsFanOut(t *testing.T) {
	dispatcher, _, repo, queue := newDispatcherFixture()
	payload := mustJSON(t, events.ResultsPublished{ExamID: "e1", ExamName: "Midterm", ClassID: classSevenID})

	require.NoError(t, dispatcher.OnResultsPublished(context.Background(), payload))
	require.Len(t, repo.items, 2)
	assert.Equal(t, NotificationResultsPublished, repo.items[0].Type)
	assert.Equal(t, "e1", repo.items[0].Data["exam_id"])

	var channels []string
	for _, job := range queue.jobs {
		assert.Equal(t, DeliveryJobType, job.Type)
		channels = append(channels, job.Payload.(Delivery).Channel)
	}
	assert.Equal(t, []string{ChannelEmail, ChannelEmail, ChannelSMS}, channels)
}

func TestDispatcherNoticeAudiences(t *testing.T) {
	dispatcher, directory, repo, queue := newDispatcherFixture()
	directory.roleResult = []models.Recipient{{UserID: "t1"}, {UserID: "s1"}}

	payload := mustJSON(t, events.NoticePublished{NoticeID: "n1", Title: "Staff meeting", Audience: models.AudienceStaff})
	require.NoError(t, dispatcher.OnNoticePublished(context.Background(), payload))
	assert.Equal(t, []string{"STAFF", "ACCOUNTANT", "TEACHER"}, directory.lastRoles)
	assert.Len(t, repo.items, 2)
	assert.Empty(t, queue.jobs)

	payload = mustJSON(t, events.NoticePublished{NoticeID: "n2", Title: "Trip", Audience: models.AudienceClass, ClassID: classSevenID})
	require.NoError(t, dispatcher.OnNoticePublished(context.Background(), payload))
	assert.Len(t, repo.items, 4)
}

func TestDispatcherWaiverAndLessonPlan(t *testing.T) {
	dispatcher, _, repo, _ := newDispatcherFixture()
	ctx := context.Background()

	payload := mustJSON(t, events.WaiverDecided{WaiverID: "w1", FeeID: "f1", StudentID: studentOneID, Status: "approved", Amount: 100, RequestedBy: "acc-user"})
	require.NoError(t, dispatcher.OnWaiverDecided(ctx, payload))
	assert.Len(t, repo.items, 3)

	payload = mustJSON(t, events.LessonPlanReviewed{LessonPlanID: "lp1", TeacherID: teacherOneID, Title: "Fractions", Status: "approved"})
	require.NoError(t, dispatcher.OnLessonPlanReviewed(ctx, payload))
	require.Len(t, repo.items, 4)
	assert.Equal(t, "teacher-user", repo.items[3].UserID)

	assert.Error(t, dispatcher.OnFeePaymentRecorded(ctx, []byte("{")))
}

type recordingSender struct {
	emails []notify.EmailMessage
	sms    []notify.SMSMessage
}

func (r *recordingSender) SendEmail(ctx context.Context, msg notify.EmailMessage) error {
	r.emails = append(r.emails, msg)
	return nil
}

func (r *recordingSender) SendSMS(ctx context.Context, msg notify.SMSMessage) error {
	r.sms = append(r.sms, msg)
	return nil
}

type deliveryCounts map[string]int

func (d deliveryCounts) ObserveDelivery(channel, outcome string) { d[channel+":"+outcome]++ }

func TestDeliveryWorkerRoutesChannels(t *testing.T) {
	sender := &recordingSender{}
	counts := deliveryCounts{}
	worker := NewDeliveryWorker(sender, sender, counts, nil)
	ctx := context.Background()

	require.NoError(t, worker.Handle(ctx, jobs.Job{Payload: Delivery{Channel: ChannelEmail, To: "a@example.com", Subject: "Hi", Body: "<b>x</b>"}}))
	require.NoError(t, worker.Handle(ctx, jobs.Job{Payload: Delivery{Channel: ChannelSMS, To: "+62", Body: "x"}}))

	require.Len(t, sender.emails, 1)
	assert.Equal(t, "<p>&lt;b&gt;x&lt;/b&gt;</p>", sender.emails[0].HTML)
	require.Len(t, sender.sms, 1)
	assert.Equal(t, deliveryCounts{"email:sent": 1, "sms:sent": 1}, counts)
}

func TestDeliveryWorkerMarksMalformedDeliveriesPermanent(t *testing.T) {
	counts := deliveryCounts{}
	worker := NewDeliveryWorker(&recordingSender{}, &recordingSender{}, counts, nil)
	ctx := context.Background()

	for _, job := range []jobs.Job{
		{Payload: "garbage"},
		{Payload: Delivery{Channel: ChannelSMS, To: " "}},
		{Payload: Delivery{Channel: "fax", To: "123"}},
	} {
		err := worker.Handle(ctx, job)
		assert.True(t, jobs.IsPermanent(err), err)
		worker.GivenUp(job, err)
	}
	assert.Equal(t, deliveryCounts{"unknown:abandoned": 1, "sms:abandoned": 1, "fax:abandoned": 1}, counts)
}
