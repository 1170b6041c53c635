package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/config"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (r *recordingMailer) Send(_ context.Context, email Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, email)
	return r.err
}

type fakeSES struct {
	sesiface.SESAPI
	input *ses.SendEmailInput
}

func (f *fakeSES) SendEmailWithContext(_ aws.Context, in *ses.SendEmailInput, _ ...request.Option) (*ses.SendEmailOutput, error) {
	f.input = in
	return &ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func TestVerificationEmailEscapesName(t *testing.T) {
	email := VerificationEmail("a@b.io", "<Ann>", "123456")
	assert.Equal(t, "a@b.io", email.To)
	assert.Contains(t, email.HTML, "&lt;Ann&gt;")
	assert.Contains(t, email.HTML, "123456")
	assert.Contains(t, email.Text, "123456")
}

func TestTicketCreatedEmailSubject(t *testing.T) {
	email := TicketCreatedEmail("a@b.io", "Ann", "TK-0007", "Printer on fire")
	assert.Equal(t, "[TK-0007] Printer on fire", email.Subject)
}

func TestSESMailerBuildsRequest(t *testing.T) {
	client := &fakeSES{}
	m := NewSESMailer(client, "no-reply@helpdesk.io")

	require.NoError(t, m.Send(context.Background(), PasswordResetEmail("a@b.io", "Ann", "http://app/reset/abc")))
	require.NotNil(t, client.input)
	assert.Equal(t, "no-reply@helpdesk.io", aws.StringValue(client.input.Source))
	assert.Equal(t, "a@b.io", aws.StringValue(client.input.Destination.ToAddresses[0]))
	assert.Equal(t, "Reset your password", aws.StringValue(client.input.Message.Subject.Data))
	assert.Contains(t, aws.StringValue(client.input.Message.Body.Text.Data), "http://app/reset/abc")
}

func TestNewSelectsProvider(t *testing.T) {
	m, err := New(config.EmailConfig{Provider: "log"})
	require.NoError(t, err)
	assert.IsType(t, LogMailer{}, m)

	m, err = New(config.EmailConfig{Provider: "smtp", Host: "smtp.example.com", Port: 587})
	require.NoError(t, err)
	assert.IsType(t, &BreakerMailer{}, m)

	_, err = New(config.EmailConfig{Provider: "smtp"})
	assert.Error(t, err)

	_, err = New(config.EmailConfig{Provider: "pigeon"})
	assert.Error(t, err)
}

func TestBreakerMailerOpensAfterFailures(t *testing.T) {
	inner := &recordingMailer{err: errors.New("smtp down")}
	m := NewBreakerMailer(inner, utils.NewCircuitBreaker("email-test", 2, time.Minute))

	for i := 0; i < 2; i++ {
		assert.Error(t, m.Send(context.Background(), Email{To: "a@b.io"}))
	}
	assert.ErrorIs(t, m.Send(context.Background(), Email{To: "a@b.io"}), utils.ErrCircuitOpen)
	assert.Len(t, inner.sent, 2)
}

func TestDispatcherSwallowsErrors(t *testing.T) {
	inner := &recordingMailer{err: errors.New("smtp down")}
	d := NewDispatcher(inner)

	d.Send(Email{To: "a@b.io", Subject: "one"})
	d.Send(Email{To: "c@d.io", Subject: "two"})
	d.Wait()

	assert.Len(t, inner.sent, 2)
}
