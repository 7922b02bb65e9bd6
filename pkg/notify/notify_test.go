package notify

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

func TestSendGridMailerBuildsMessage(t *testing.T) {
	var captured *sgmail.SGMailV3
	m := &SendGridMailer{
		from: sgmail.NewEmail("School Office", "office@school.local"),
		send: func(msg *sgmail.SGMailV3) (*rest.Response, error) {
			captured = msg
			return &rest.Response{StatusCode: http.StatusAccepted}, nil
		},
	}
	err := m.SendEmail(context.Background(), EmailMessage{To: "parent@example.com", ToName: "Parent", Subject: "Results", Text: "published", HTML: "<p>published</p>"})
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "office@school.local", captured.From.Address)
	require.Len(t, captured.Personalizations, 1)
	assert.Equal(t, "Results", captured.Personalizations[0].Subject)
	assert.Equal(t, "parent@example.com", captured.Personalizations[0].To[0].Address)
	assert.Len(t, captured.Content, 2)
}

func TestSendGridMailerSurfacesAPIErrors(t *testing.T) {
	m := &SendGridMailer{
		from: sgmail.NewEmail("School", "office@school.local"),
		send: func(*sgmail.SGMailV3) (*rest.Response, error) {
			return &rest.Response{StatusCode: http.StatusUnauthorized, Body: "bad key"}, nil
		},
	}
	err := m.SendEmail(context.Background(), EmailMessage{To: "a@b.c", Subject: "x", Text: "y"})
	assert.ErrorContains(t, err, "401")

	assert.Error(t, m.SendEmail(context.Background(), EmailMessage{}))
}

type fakeTwilio struct {
	params *openapi.CreateMessageParams
	err    error
}

func (f *fakeTwilio) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = params
	return &openapi.ApiV2010Message{}, f.err
}

func TestTwilioSMS(t *testing.T) {
	fake := &fakeTwilio{}
	s := &TwilioSMS{api: fake, from: "+15550001"}
	require.NoError(t, s.SendSMS(context.Background(), SMSMessage{To: "+628123", Body: "Fee received"}))
	assert.Equal(t, "+628123", *fake.params.To)
	assert.Equal(t, "+15550001", *fake.params.From)
	assert.Equal(t, "Fee received", *fake.params.Body)

	fake.err = errors.New("invalid number")
	assert.ErrorContains(t, s.SendSMS(context.Background(), SMSMessage{To: "x", Body: "y"}), "invalid number")
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(nil)
	assert.NoError(t, s.SendEmail(context.Background(), EmailMessage{To: "a"}))
	assert.NoError(t, s.SendSMS(context.Background(), SMSMessage{To: "b"}))
}
